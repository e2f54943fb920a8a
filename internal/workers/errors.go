package workers

import "fmt"

// PoolError reports a pool-level dispatch failure.
type PoolError struct {
	Code    string
	Message string
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("worker pool: %s: %s", e.Code, e.Message)
}

// Retryable: pool conditions are transient; capacity frees up as tasks
// complete.
func (e *PoolError) Retryable() bool { return true }

// ErrCapacityReached is returned when every slot is taken and the pool is
// at its size limit. No worker is ever created beyond the limit.
var ErrCapacityReached = &PoolError{
	Code:    "capacity_reached",
	Message: "all workers busy and pool is at maximum size",
}

// ExecutionError reports a script that ran and failed, or could not finish.
type ExecutionError struct {
	WorkerID string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execution failed on worker %s: %v", e.WorkerID, e.Err)
	}
	return fmt.Sprintf("execution failed on worker %s: exit code %d", e.WorkerID, e.ExitCode)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Retryable() bool { return true }
