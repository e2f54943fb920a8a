package sandbox

import (
	"sync"
	"testing"
	"time"
)

func TestCircuitBreaker_ClosedState(t *testing.T) {
	cb := NewCircuitBreaker(5, 30*time.Second)
	if !cb.Allow() {
		t.Error("should allow in closed state")
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 30*time.Second)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	if cb.State() != CircuitOpen {
		t.Error("should be open after threshold failures")
	}
	if cb.Allow() {
		t.Error("should not allow when open")
	}
}

func TestCircuitBreaker_ConcurrentFailures(t *testing.T) {
	cb := NewCircuitBreaker(5, 30*time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.RecordFailure()
		}()
	}
	wg.Wait()
	if cb.State() != CircuitOpen {
		t.Error("should be open after concurrent failures")
	}
}

func TestCircuitBreaker_HalfOpenAdmitsSingleProbe(t *testing.T) {
	cb := NewCircuitBreaker(2, 100*time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != CircuitOpen {
		t.Error("should be open")
	}

	time.Sleep(150 * time.Millisecond)

	if !cb.Allow() {
		t.Error("should allow one probe in half-open state after timeout")
	}
	if cb.Allow() {
		t.Error("should not allow a second probe while half-open")
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()
	time.Sleep(70 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("probe should be admitted")
	}
	cb.RecordFailure()

	if cb.State() != CircuitOpen {
		t.Error("failed probe should reopen the circuit")
	}
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, 30*time.Second)

	cb.RecordFailure()
	cb.RecordSuccess()

	if cb.State() != CircuitClosed {
		t.Error("success should reset to closed state")
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(2, 30*time.Second)

	cb.RecordFailure()
	cb.RecordFailure()

	cb.Reset()

	if cb.State() != CircuitClosed {
		t.Error("reset should return to closed state")
	}
}
