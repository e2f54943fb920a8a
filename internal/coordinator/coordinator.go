// Package coordinator owns the task lifecycle: submission into the priority
// queue, the evaluate/route/execute pipeline, the bounded retry policy, and
// the supervision loops that watch resource pressure and agent health.
// A single drain goroutine consumes the queue, so task state is only ever
// mutated from one place.
package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aatumaykin/nexos/internal/agent"
	"github.com/aatumaykin/nexos/internal/config"
	"github.com/aatumaykin/nexos/internal/evaluator"
	"github.com/aatumaykin/nexos/internal/llm"
	"github.com/aatumaykin/nexos/internal/logger"
	"github.com/aatumaykin/nexos/internal/memory"
	"github.com/aatumaykin/nexos/internal/retry"
	"github.com/aatumaykin/nexos/internal/task"
	"github.com/aatumaykin/nexos/internal/translator"
	"github.com/aatumaykin/nexos/internal/workers"
)

const (
	RouteLocal  = "local"
	RouteRemote = "remote"

	coordinatorAgentID = "coordinator-1"
	evaluatorAgentID   = "evaluator-1"
	translatorAgentID  = "translator-1"

	// historyDepth bounds how many past exchanges are replayed into a
	// remote prompt.
	historyDepth = 3
)

const remoteSystemPrompt = "You are a task execution assistant. Answer the user's request directly and concisely. Prior exchanges from this session may be included for context."

// EvaluatorService screens and routes task text.
type EvaluatorService interface {
	Evaluate(sessionID, taskText string) (*evaluator.Evaluation, error)
}

// TranslatorService turns a command into a runnable script.
type TranslatorService interface {
	Translate(taskID, command string) (*translator.Script, error)
}

// ExecutorPool is the slice of the worker pool the coordinator dispatches
// to and monitors.
type ExecutorPool interface {
	Execute(ctx context.Context, specialization, script string) (*workers.Result, error)
	AggregateUsage() (cpu, mem float64)
	Snapshot() []workers.WorkerInfo
}

// Deps carries the collaborators. Every dependency is injected; the
// coordinator constructs nothing it talks to.
type Deps struct {
	Queue      *task.Queue
	Evaluator  EvaluatorService
	Translator TranslatorService
	Pool       ExecutorPool
	Provider   llm.Provider
	History    *memory.BestEffort
	Registry   *agent.Registry
	Metrics    *Metrics
	Logger     *logger.Logger

	// Bootstrap prepares external resources (sandbox image, provider
	// reachability) and is retried during Start. Optional.
	Bootstrap func(ctx context.Context) error
}

// Coordinator is the orchestration core.
type Coordinator struct {
	cfg        config.CoordinatorConfig
	queue      *task.Queue
	evaluator  EvaluatorService
	translator TranslatorService
	pool       ExecutorPool
	provider   llm.Provider
	history    *memory.BestEffort
	registry   *agent.Registry
	metrics    *Metrics
	logger     *logger.Logger
	bootstrap  func(ctx context.Context) error
	tracker    *resultTracker

	agentCoordinator *agent.Agent
	agentEvaluator   *agent.Agent
	agentTranslator  *agent.Agent

	running   atomic.Bool
	throttled atomic.Bool
	wake      chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New creates the coordinator and registers the three core agents.
func New(cfg config.CoordinatorConfig, deps Deps) (*Coordinator, error) {
	c := &Coordinator{
		cfg:        cfg,
		queue:      deps.Queue,
		evaluator:  deps.Evaluator,
		translator: deps.Translator,
		pool:       deps.Pool,
		provider:   deps.Provider,
		history:    deps.History,
		registry:   deps.Registry,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		bootstrap:  deps.Bootstrap,
		tracker:    newResultTracker(),
		wake:       make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}

	c.agentCoordinator = agent.New(coordinatorAgentID, agent.TypeCoordinator, 10,
		[]string{"orchestration", "scheduling"},
		agent.ResourceAllocation{CPUQuota: 30, MemoryQuotaMB: 512, PriorityLevel: 10})
	c.agentEvaluator = agent.New(evaluatorAgentID, agent.TypeEvaluator, 8,
		[]string{"security", "routing"},
		agent.ResourceAllocation{CPUQuota: 20, MemoryQuotaMB: 256, PriorityLevel: 8})
	c.agentTranslator = agent.New(translatorAgentID, agent.TypeTranslator, 6,
		[]string{"script_generation"},
		agent.ResourceAllocation{CPUQuota: 20, MemoryQuotaMB: 256, PriorityLevel: 6})

	for _, a := range []*agent.Agent{c.agentCoordinator, c.agentEvaluator, c.agentTranslator} {
		if err := c.registry.Register(a); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Start runs the bootstrap under the startup retry policy, then launches
// the drain, monitor and health loops. A bootstrap that keeps failing is
// fatal.
func (c *Coordinator) Start(ctx context.Context) error {
	attempts := c.cfg.StartupAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := time.Duration(c.cfg.StartupBackoffSeconds) * time.Second

	if c.bootstrap != nil {
		var lastErr error
		for attempt := 1; attempt <= attempts; attempt++ {
			lastErr = c.bootstrap(ctx)
			if lastErr == nil {
				break
			}
			c.logger.Warn("startup attempt failed",
				logger.Field{Key: "attempt", Value: attempt},
				logger.Field{Key: "max_attempts", Value: attempts},
				logger.Field{Key: "error", Value: lastErr})
			if attempt == attempts || backoff <= 0 {
				continue
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return &InitializationError{Attempts: attempt, Err: ctx.Err()}
			}
		}
		if lastErr != nil {
			return &InitializationError{Attempts: attempts, Err: lastErr}
		}
	}

	c.running.Store(true)
	c.wg.Add(3)
	go c.drainLoop()
	go c.monitorLoop()
	go c.healthLoop()

	c.logger.Info("coordinator started",
		logger.Field{Key: "queue_capacity", Value: c.cfg.QueueCapacity},
		logger.Field{Key: "max_retries", Value: c.retryLimit()})
	return nil
}

// Submit enqueues a command and blocks until its terminal result or the
// submit timeout.
func (c *Coordinator) Submit(ctx context.Context, command string, priority int, sessionID string) (*Result, error) {
	t, err := c.Enqueue(command, priority, sessionID)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(c.cfg.SubmitTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return c.tracker.Wait(ctx, t.ID, timeout)
}

// Enqueue validates and queues a command without waiting for the result.
func (c *Coordinator) Enqueue(command string, priority int, sessionID string) (*task.Task, error) {
	if !c.running.Load() {
		return nil, ErrNotRunning
	}
	if strings.TrimSpace(command) == "" {
		return nil, &SubmitError{Code: "empty_command", Message: "command must not be empty"}
	}

	if priority <= 0 {
		priority = c.cfg.DefaultPriority
	}
	if priority <= 0 {
		priority = 5
	}
	if priority > 10 {
		priority = 10
	}

	if c.cfg.QueueCapacity > 0 && c.queue.Len() >= c.cfg.QueueCapacity {
		return nil, ErrQueueFull
	}

	t := task.New(command, priority, sessionID)
	c.tracker.Register(t.ID)
	c.queue.Push(t)
	c.metrics.SetQueueDepth(c.queue.Len())
	c.signal()

	c.logger.Debug("task enqueued",
		logger.Field{Key: "task_id", Value: t.ID},
		logger.Field{Key: "priority", Value: t.Priority},
		logger.Field{Key: "session_id", Value: sessionID})
	return t, nil
}

// signal wakes the drain loop without blocking.
func (c *Coordinator) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// drainLoop is the single queue consumer.
func (c *Coordinator) drainLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.wake:
		}

		for {
			t := c.queue.Pop()
			if t == nil {
				break
			}
			c.metrics.SetQueueDepth(c.queue.Len())
			c.dispatch(t)

			select {
			case <-c.stopCh:
				return
			default:
			}
		}
	}
}

// dispatch runs one attempt of the pipeline and settles the task: complete,
// reject, re-queue for retry, or fail.
func (c *Coordinator) dispatch(t *task.Task) {
	ctx := context.Background()
	start := time.Now()
	c.agentCoordinator.Heartbeat()

	output, route, err := c.attempt(ctx, t)
	duration := time.Since(start)
	local := route != RouteRemote

	if err == nil {
		t.State = task.StateCompleted
		c.agentCoordinator.RecordTask(agent.TaskRecord{TaskID: t.ID, Local: local, Success: true, Duration: duration})
		c.metrics.RecordTask("completed", duration)
		c.history.Store(ctx, memory.Conversation{
			SessionID: t.SessionID,
			Command:   t.Command,
			Result:    output,
			Timestamp: time.Now(),
		})
		c.tracker.Complete(t.ID, &Result{
			TaskID:   t.ID,
			State:    task.StateCompleted,
			Output:   output,
			Route:    route,
			Attempts: t.RetryCount + 1,
			Duration: duration,
		})
		c.logger.Info("task completed",
			logger.Field{Key: "task_id", Value: t.ID},
			logger.Field{Key: "route", Value: route},
			logger.Field{Key: "attempts", Value: t.RetryCount + 1},
			logger.Field{Key: "duration", Value: duration})
		return
	}

	if t.State == task.StateRejected {
		// Security rejections are terminal and keep their zero retry count.
		c.agentCoordinator.RecordTask(agent.TaskRecord{TaskID: t.ID, Local: true, Success: false, Duration: duration})
		c.metrics.RecordTask("rejected", duration)
		c.tracker.Complete(t.ID, &Result{
			TaskID:   t.ID,
			State:    task.StateRejected,
			Attempts: t.RetryCount + 1,
			Duration: duration,
			Err:      err,
		})
		c.logger.Warn("task rejected",
			logger.Field{Key: "task_id", Value: t.ID},
			logger.Field{Key: "error", Value: err})
		return
	}

	if retry.IsRetryable(err) && !c.exhausted(t) {
		t.MarkRetry()
		c.metrics.RecordRetry()
		c.queue.Push(t)
		c.metrics.SetQueueDepth(c.queue.Len())
		c.signal()
		c.logger.Warn("task re-queued after failure",
			logger.Field{Key: "task_id", Value: t.ID},
			logger.Field{Key: "retry_count", Value: t.RetryCount},
			logger.Field{Key: "error", Value: err})
		return
	}

	t.State = task.StateFailed
	c.agentCoordinator.RecordTask(agent.TaskRecord{TaskID: t.ID, Local: local, Success: false, Duration: duration})
	c.metrics.RecordTask("failed", duration)
	c.tracker.Complete(t.ID, &Result{
		TaskID:   t.ID,
		State:    task.StateFailed,
		Route:    route,
		Attempts: t.RetryCount + 1,
		Duration: duration,
		Err:      err,
	})
	c.logger.Error("task failed", err,
		logger.Field{Key: "task_id", Value: t.ID},
		logger.Field{Key: "attempts", Value: t.RetryCount + 1})
}

// attempt runs the pipeline once. Every attempt re-evaluates: routing may
// change between retries as load and limits shift.
func (c *Coordinator) attempt(ctx context.Context, t *task.Task) (output, route string, err error) {
	t.State = task.StateEvaluating
	c.agentEvaluator.Heartbeat()

	evalStart := time.Now()
	eval, err := c.evaluator.Evaluate(t.SessionID, t.Command)
	if err != nil {
		c.agentEvaluator.RecordTask(agent.TaskRecord{TaskID: t.ID, Local: true, Success: false, Duration: time.Since(evalStart)})
		var secErr *evaluator.SecurityError
		if errors.As(err, &secErr) {
			t.State = task.StateRejected
		}
		return "", "", err
	}
	c.agentEvaluator.RecordTask(agent.TaskRecord{TaskID: t.ID, Local: true, Success: true, Duration: time.Since(evalStart)})

	t.State = task.StateRouting
	if eval.Route.Kind == evaluator.RouteLocal {
		return c.runLocal(ctx, t)
	}
	return c.runRemote(ctx, t, eval)
}

func (c *Coordinator) runLocal(ctx context.Context, t *task.Task) (string, string, error) {
	t.State = task.StateTranslating
	c.agentTranslator.Heartbeat()

	trStart := time.Now()
	script, err := c.translator.Translate(t.ID, t.Command)
	if err != nil {
		c.agentTranslator.RecordTask(agent.TaskRecord{TaskID: t.ID, Local: true, Success: false, Duration: time.Since(trStart)})
		return "", RouteLocal, err
	}
	c.agentTranslator.RecordTask(agent.TaskRecord{TaskID: t.ID, Local: true, Success: true, Duration: time.Since(trStart)})

	t.State = task.StateExecuting
	res, err := c.pool.Execute(ctx, string(script.Intent), script.Content)
	if err != nil {
		return "", RouteLocal, err
	}
	return res.Output, RouteLocal, nil
}

func (c *Coordinator) runRemote(ctx context.Context, t *task.Task, eval *evaluator.Evaluation) (string, string, error) {
	t.State = task.StateRemoteCall

	messages := []llm.Message{{Role: llm.RoleSystem, Content: remoteSystemPrompt}}
	for _, conv := range c.history.Relevant(ctx, t.SessionID, t.Command, historyDepth) {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: conv.Command},
			llm.Message{Role: llm.RoleAssistant, Content: conv.Result})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: t.Command})

	resp, err := c.provider.Chat(ctx, llm.ChatRequest{
		Model:    eval.Route.ModelHint,
		Messages: messages,
	})
	if err != nil {
		return "", RouteRemote, err
	}
	return resp.Content, RouteRemote, nil
}

func (c *Coordinator) retryLimit() int {
	if c.cfg.MaxRetries > 0 {
		return c.cfg.MaxRetries
	}
	return task.MaxRetries
}

func (c *Coordinator) exhausted(t *task.Task) bool {
	return t.RetryCount >= c.retryLimit()-1
}

// Status is a point-in-time view of the orchestration core.
type Status struct {
	Running        bool
	Throttled      bool
	QueueDepth     int
	QueueDepths    map[int]int
	PendingResults int
	Agents         []agent.Summary
	Workers        []workers.WorkerInfo
	PoolCPU        float64
	PoolMemory     float64
}

// Status snapshots the queue, agents and worker pool.
func (c *Coordinator) Status() Status {
	cpu, mem := c.pool.AggregateUsage()
	return Status{
		Running:        c.running.Load(),
		Throttled:      c.throttled.Load(),
		QueueDepth:     c.queue.Len(),
		QueueDepths:    c.queue.Depths(),
		PendingResults: c.tracker.PendingCount(),
		Agents:         c.registry.Summaries(),
		Workers:        c.pool.Snapshot(),
		PoolCPU:        cpu,
		PoolMemory:     mem,
	}
}

// Shutdown stops the loops and fails whatever is still queued. The worker
// pool and sandbox are shut down by the application, not here.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.running.Store(false)
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()

	cleared := c.queue.Clear()
	for _, t := range cleared {
		t.State = task.StateFailed
		c.tracker.Complete(t.ID, &Result{
			TaskID:   t.ID,
			State:    task.StateFailed,
			Attempts: t.RetryCount + 1,
			Err:      ErrNotRunning,
		})
	}
	c.metrics.SetQueueDepth(0)

	c.logger.InfoCtx(ctx, "coordinator stopped",
		logger.Field{Key: "cleared_tasks", Value: len(cleared)})
}
