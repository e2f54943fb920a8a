package sandbox

import (
	"sync/atomic"
	"time"
)

type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker shields the container runtime: after `threshold`
// consecutive failures it opens for `timeout`, then admits a single probe.
type CircuitBreaker struct {
	state            atomic.Int32
	failures         atomic.Int32
	lastFail         atomic.Int64
	halfOpenAttempts atomic.Int32
	threshold        int32
	timeout          time.Duration
}

func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		threshold: int32(threshold),
		timeout:   timeout,
	}
}

func (cb *CircuitBreaker) Allow() bool {
	for {
		state := CircuitState(cb.state.Load())

		switch state {
		case CircuitClosed:
			return true

		case CircuitOpen:
			lastFail := time.Unix(0, cb.lastFail.Load())
			if time.Since(lastFail) <= cb.timeout {
				return false
			}
			if !cb.state.CompareAndSwap(int32(CircuitOpen), int32(CircuitHalfOpen)) {
				continue
			}
			cb.halfOpenAttempts.Store(0)
			return true

		case CircuitHalfOpen:
			// Only one probe may pass while half-open.
			return cb.halfOpenAttempts.CompareAndSwap(0, 1)
		}
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.failures.Store(0)
	cb.halfOpenAttempts.Store(0)
	cb.state.Store(int32(CircuitClosed))
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.failures.Add(1)
	cb.lastFail.Store(time.Now().UnixNano())

	state := CircuitState(cb.state.Load())
	if state == CircuitHalfOpen {
		cb.state.Store(int32(CircuitOpen))
	} else if cb.failures.Load() >= cb.threshold {
		cb.state.CompareAndSwap(int32(CircuitClosed), int32(CircuitOpen))
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(cb.state.Load())
}

func (cb *CircuitBreaker) Reset() {
	cb.failures.Store(0)
	cb.halfOpenAttempts.Store(0)
	cb.state.Store(int32(CircuitClosed))
}

// Timeout is the open-state cooldown, reported to callers in
// CircuitOpenError.
func (cb *CircuitBreaker) Timeout() time.Duration {
	return cb.timeout
}
