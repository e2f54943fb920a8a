package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aatumaykin/nexos/internal/task"
)

// Result is the terminal outcome of one submitted task.
type Result struct {
	TaskID   string
	State    task.State
	Output   string
	Route    string
	Attempts int
	Duration time.Duration
	Err      error
}

// resultTracker matches submitted tasks with their terminal results so
// synchronous submitters can wait. Channels are buffered: a completion
// never blocks the drain loop, and a result posted before the waiter
// arrives is retained.
type resultTracker struct {
	mu      sync.Mutex
	pending map[string]chan *Result
}

func newResultTracker() *resultTracker {
	return &resultTracker{
		pending: make(map[string]chan *Result),
	}
}

// Register creates a pending slot for the task. Must be called before the
// task enters the queue.
func (rt *resultTracker) Register(taskID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.pending[taskID] = make(chan *Result, 1)
}

// Wait blocks until the task completes, the timeout elapses, or the context
// is cancelled.
func (rt *resultTracker) Wait(ctx context.Context, taskID string, timeout time.Duration) (*Result, error) {
	rt.mu.Lock()
	ch, ok := rt.pending[taskID]
	rt.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no pending result for task %s", taskID)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res, nil
	case <-timer.C:
		rt.drop(taskID)
		return nil, fmt.Errorf("timed out waiting for task %s after %s", taskID, timeout)
	case <-ctx.Done():
		rt.drop(taskID)
		return nil, ctx.Err()
	}
}

// Complete delivers the result and releases the slot. Unknown ids are
// ignored: the waiter may have timed out and dropped the slot already.
func (rt *resultTracker) Complete(taskID string, res *Result) {
	rt.mu.Lock()
	ch, ok := rt.pending[taskID]
	if ok {
		delete(rt.pending, taskID)
	}
	rt.mu.Unlock()

	if !ok {
		return
	}

	select {
	case ch <- res:
	default:
	}
}

func (rt *resultTracker) drop(taskID string) {
	rt.mu.Lock()
	delete(rt.pending, taskID)
	rt.mu.Unlock()
}

// PendingCount reports how many tasks are awaiting results.
func (rt *resultTracker) PendingCount() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.pending)
}
