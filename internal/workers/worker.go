package workers

import (
	"sync"
	"time"
)

// Status is a worker's lifecycle state.
type Status string

const (
	StatusIdle  Status = "idle"
	StatusBusy  Status = "busy"
	StatusError Status = "error"
)

// Metrics is a worker's measured load. CPU and memory percentages come from
// container stats; a worker whose sandbox cannot be reached reports CPU 100
// so selection never picks it.
type Metrics struct {
	CPUUsage    float64
	MemoryUsage float64
	TaskCount   int64
	LastActive  time.Time
	Status      Status
}

// Worker wraps one sandbox container dedicated to a specialization.
type Worker struct {
	ID             string
	Specialization string
	ContainerID    string
	CreatedAt      time.Time

	mu      sync.Mutex
	metrics Metrics
}

func newWorker(id, specialization, containerID string) *Worker {
	return &Worker{
		ID:             id,
		Specialization: specialization,
		ContainerID:    containerID,
		CreatedAt:      time.Now(),
		metrics: Metrics{
			Status:     StatusIdle,
			LastActive: time.Now(),
		},
	}
}

// Snapshot returns a copy of the worker's metrics.
func (w *Worker) Snapshot() Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

func (w *Worker) setStatus(s Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics.Status = s
	if s == StatusBusy {
		w.metrics.LastActive = time.Now()
	}
}

func (w *Worker) status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics.Status
}

// recordUsage stores a measured resource reading. A successful reading
// clears a previous error state: the container answered.
func (w *Worker) recordUsage(cpu, mem float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics.CPUUsage = cpu
	w.metrics.MemoryUsage = mem
	if w.metrics.Status == StatusError {
		w.metrics.Status = StatusIdle
	}
}

// markUnreachable pins CPU to 100 so selection skips the worker until a
// fresh reading succeeds.
func (w *Worker) markUnreachable() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics.CPUUsage = 100
	w.metrics.Status = StatusError
}

func (w *Worker) taskDone(ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics.TaskCount++
	w.metrics.LastActive = time.Now()
	if ok {
		w.metrics.Status = StatusIdle
	} else {
		w.metrics.Status = StatusError
	}
}

// idleFor reports how long the worker has been idle.
func (w *Worker) idleFor() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.metrics.Status != StatusIdle {
		return 0
	}
	return time.Since(w.metrics.LastActive)
}
