package sandbox

import (
	"fmt"
	"time"
)

// SandboxError wraps a failed operation against the container runtime.
type SandboxError struct {
	Op      string
	Message string
	Err     error
}

func (e *SandboxError) Error() string {
	return fmt.Sprintf("sandbox %s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *SandboxError) Unwrap() error {
	return e.Err
}

// Retryable: runtime hiccups are worth another attempt.
func (e *SandboxError) Retryable() bool { return true }

// CircuitOpenError is returned while the breaker shields the daemon.
type CircuitOpenError struct {
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open, retry after %v", e.RetryAfter)
}

func (e *CircuitOpenError) Retryable() bool { return true }

// ExecTimeoutError reports a script exceeding its execution deadline.
type ExecTimeoutError struct {
	Timeout time.Duration
}

func (e *ExecTimeoutError) Error() string {
	return fmt.Sprintf("script execution timed out after %v", e.Timeout)
}

func (e *ExecTimeoutError) Retryable() bool { return true }
