package coordinator

import "fmt"

// InitializationError is fatal: startup failed after its retry budget and
// the process cannot serve tasks.
type InitializationError struct {
	Attempts int
	Err      error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("coordinator initialization failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

func (e *InitializationError) Retryable() bool { return false }

// SubmitError rejects a submission before it enters the queue.
type SubmitError struct {
	Code    string
	Message string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit rejected: %s: %s", e.Code, e.Message)
}

// ErrQueueFull is returned when the queue is at capacity. Transient: the
// caller may retry after the backlog drains.
var ErrQueueFull = &SubmitError{Code: "queue_full", Message: "task queue is at capacity"}

// ErrNotRunning is returned when submitting before Start or after Shutdown.
var ErrNotRunning = &SubmitError{Code: "not_running", Message: "coordinator is not running"}
