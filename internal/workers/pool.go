// Package workers runs translated scripts on a bounded pool of sandboxed
// workers. Each worker owns one container dedicated to a specialization.
// Workers are created lazily up to the pool limit and reclaimed after
// sitting idle past the threshold. Selection is load-aware: an overloaded
// worker is never picked, and when every candidate is loaded the dispatch
// fails with a capacity error instead of queueing inside the pool.
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aatumaykin/nexos/internal/config"
	"github.com/aatumaykin/nexos/internal/logger"
	"github.com/aatumaykin/nexos/internal/sandbox"
)

// Runtime is the slice of the sandbox the pool needs. *sandbox.Sandbox
// implements it; tests inject a fake.
type Runtime interface {
	Provision(ctx context.Context, name string, profile sandbox.Profile) (string, error)
	Execute(ctx context.Context, containerID, script string, timeout time.Duration) (*sandbox.ExecResult, error)
	Usage(ctx context.Context, containerID string) (*sandbox.Usage, error)
	Release(ctx context.Context, containerID string)
}

// Result is the outcome of one dispatched script.
type Result struct {
	WorkerID string
	Output   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// WorkerInfo is a read-only view of one worker for monitoring.
type WorkerInfo struct {
	ID             string
	Specialization string
	Metrics        Metrics
}

// Pool dispatches scripts to specialized workers.
type Pool struct {
	cfg     config.WorkersConfig
	runtime Runtime
	metrics *PoolMetrics
	logger  *logger.Logger

	mu           sync.Mutex
	workers      map[string]*Worker
	provisioning int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPool(cfg config.WorkersConfig, runtime Runtime, metrics *PoolMetrics, log *logger.Logger) *Pool {
	return &Pool{
		cfg:     cfg,
		runtime: runtime,
		metrics: metrics,
		logger:  log,
		workers: make(map[string]*Worker),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the adaptive metrics sampler.
func (p *Pool) Start() {
	p.wg.Add(1)
	go p.sampleLoop()
}

// Execute runs a script on a worker of the given specialization. The script
// runs under the configured task timeout; exceeding it fails the dispatch.
func (p *Pool) Execute(ctx context.Context, specialization, script string) (*Result, error) {
	worker, err := p.acquire(ctx, specialization)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(p.cfg.TaskTimeoutSeconds) * time.Second
	start := time.Now()

	execResult, err := p.runtime.Execute(ctx, worker.ContainerID, script, timeout)
	p.refreshUsage(ctx, worker)

	if err != nil {
		worker.taskDone(false)
		p.publishCounts()
		p.metrics.RecordTask("error", time.Since(start))
		return nil, &ExecutionError{WorkerID: worker.ID, Err: err}
	}

	if execResult.ExitCode != 0 {
		worker.taskDone(false)
		p.publishCounts()
		p.metrics.RecordTask("failed", execResult.Duration)
		return nil, &ExecutionError{
			WorkerID: worker.ID,
			ExitCode: execResult.ExitCode,
			Stderr:   execResult.Stderr,
		}
	}

	worker.taskDone(true)
	p.publishCounts()
	p.metrics.RecordTask("completed", execResult.Duration)

	output := execResult.Stdout
	if specialization == "network" && looksLikeHTML(output) {
		if markdown := htmlToMarkdown(output, p.logger); markdown != "" {
			output = markdown
		}
	}

	return &Result{
		WorkerID: worker.ID,
		Output:   output,
		Stderr:   execResult.Stderr,
		ExitCode: execResult.ExitCode,
		Duration: execResult.Duration,
	}, nil
}

// acquire picks the least-loaded eligible worker or lazily creates one.
// Eligible: matching specialization, idle, and both CPU and memory below
// the selection threshold.
func (p *Pool) acquire(ctx context.Context, specialization string) (*Worker, error) {
	p.mu.Lock()

	var best *Worker
	bestLoad := 0.0
	for _, w := range p.workers {
		if w.Specialization != specialization {
			continue
		}
		m := w.Snapshot()
		if m.Status != StatusIdle {
			continue
		}
		if m.CPUUsage >= p.cfg.SelectionLoadThreshold || m.MemoryUsage >= p.cfg.SelectionLoadThreshold {
			continue
		}
		load := m.CPUUsage + m.MemoryUsage
		if best == nil || load < bestLoad {
			best = w
			bestLoad = load
		}
	}

	if best != nil {
		best.setStatus(StatusBusy)
		p.mu.Unlock()
		p.publishCounts()
		return best, nil
	}

	if len(p.workers)+p.provisioning >= p.cfg.MaxWorkers {
		p.mu.Unlock()
		p.metrics.RecordCapacityHit()
		return nil, ErrCapacityReached
	}

	// Reserve the slot before provisioning so concurrent dispatches cannot
	// overshoot the limit.
	p.provisioning++
	p.mu.Unlock()

	worker, err := p.provision(ctx, specialization)

	p.mu.Lock()
	p.provisioning--
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	worker.setStatus(StatusBusy)
	p.workers[worker.ID] = worker
	p.mu.Unlock()

	p.publishCounts()
	return worker, nil
}

func (p *Pool) provision(ctx context.Context, specialization string) (*Worker, error) {
	id := fmt.Sprintf("%s-%s", specialization, uuid.New().String()[:8])

	containerID, err := p.runtime.Provision(ctx, id, sandbox.ProfileFor(specialization))
	if err != nil {
		return nil, err
	}

	p.logger.Info("worker created",
		logger.Field{Key: "worker_id", Value: id},
		logger.Field{Key: "specialization", Value: specialization},
		logger.Field{Key: "container_id", Value: containerID})

	return newWorker(id, specialization, containerID), nil
}

// refreshUsage takes a fresh measured reading after a task. An unreachable
// container pins CPU to 100 so the worker drops out of selection.
func (p *Pool) refreshUsage(ctx context.Context, w *Worker) {
	usage, err := p.runtime.Usage(ctx, w.ContainerID)
	if err != nil {
		w.markUnreachable()
		p.logger.Warn("failed to read worker usage",
			logger.Field{Key: "worker_id", Value: w.ID},
			logger.Field{Key: "error", Value: err})
		return
	}
	w.recordUsage(usage.CPUPercent, usage.MemoryPercent)
}

// ReclaimIdle releases workers idle past the threshold. Wired to the
// maintenance schedule and safe to call concurrently with dispatches.
func (p *Pool) ReclaimIdle(ctx context.Context) int {
	threshold := time.Duration(p.cfg.IdleThresholdSeconds) * time.Second

	p.mu.Lock()
	var victims []*Worker
	for _, w := range p.workers {
		if w.idleFor() >= threshold {
			victims = append(victims, w)
			delete(p.workers, w.ID)
		}
	}
	p.mu.Unlock()

	for _, w := range victims {
		p.runtime.Release(ctx, w.ContainerID)
		p.metrics.RecordReclaim()
		p.logger.Info("idle worker reclaimed",
			logger.Field{Key: "worker_id", Value: w.ID},
			logger.Field{Key: "idle_for", Value: w.idleFor()})
	}

	p.publishCounts()
	return len(victims)
}

// sampleLoop refreshes worker metrics on an adaptive cadence: the stressed
// interval while aggregate load is above the selection threshold, the
// relaxed interval otherwise.
func (p *Pool) sampleLoop() {
	defer p.wg.Done()

	relaxed := time.Duration(p.cfg.SampleRelaxedSeconds) * time.Second
	stressed := time.Duration(p.cfg.SampleStressedSeconds) * time.Second

	timer := time.NewTimer(relaxed)
	defer timer.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		for _, w := range p.snapshotWorkers() {
			p.refreshUsage(ctx, w)
		}
		cancel()

		cpu, mem := p.AggregateUsage()
		interval := relaxed
		if cpu > p.cfg.SelectionLoadThreshold || mem > p.cfg.SelectionLoadThreshold {
			interval = stressed
		}
		timer.Reset(interval)
	}
}

func (p *Pool) snapshotWorkers() []*Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w)
	}
	return out
}

// AggregateUsage averages measured CPU and memory over live workers.
func (p *Pool) AggregateUsage() (cpu, mem float64) {
	workers := p.snapshotWorkers()
	if len(workers) == 0 {
		return 0, 0
	}
	for _, w := range workers {
		m := w.Snapshot()
		cpu += m.CPUUsage
		mem += m.MemoryUsage
	}
	n := float64(len(workers))
	return cpu / n, mem / n
}

// Snapshot lists every worker's current state.
func (p *Pool) Snapshot() []WorkerInfo {
	workers := p.snapshotWorkers()
	out := make([]WorkerInfo, 0, len(workers))
	for _, w := range workers {
		out = append(out, WorkerInfo{
			ID:             w.ID,
			Specialization: w.Specialization,
			Metrics:        w.Snapshot(),
		})
	}
	return out
}

// Counts reports total and busy workers.
func (p *Pool) Counts() (total, busy int) {
	for _, info := range p.Snapshot() {
		total++
		if info.Metrics.Status == StatusBusy {
			busy++
		}
	}
	return total, busy
}

func (p *Pool) publishCounts() {
	total, busy := p.Counts()
	p.metrics.SetWorkerCounts(total, busy)
}

// Shutdown stops the sampler and releases every worker.
func (p *Pool) Shutdown(ctx context.Context) {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	p.mu.Lock()
	workers := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.workers = make(map[string]*Worker)
	p.mu.Unlock()

	for _, w := range workers {
		p.runtime.Release(ctx, w.ContainerID)
	}
	p.publishCounts()
}
