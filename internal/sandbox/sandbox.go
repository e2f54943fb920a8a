// Package sandbox is the isolation boundary for generated scripts. Each
// worker owns one long-lived container created with hard resource limits
// (memory, CPU, pids), no-new-privileges, an optional read-only rootfs and
// networking disabled unless the capability profile grants it. Scripts run
// via exec inside that container; CPU and memory figures come from runtime
// stats, not estimates. A circuit breaker shields the daemon from repeated
// failures.
package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/aatumaykin/nexos/internal/logger"
)

// Sandbox provisions containers and executes scripts in them.
type Sandbox struct {
	cfg     Config
	client  Client
	breaker *CircuitBreaker
	metrics *Metrics
	logger  *logger.Logger

	mu   sync.Mutex
	live map[string]Profile
}

// New wires a sandbox around a runtime client. metrics may be nil.
func New(cfg Config, client Client, metrics *Metrics, log *logger.Logger) *Sandbox {
	return &Sandbox{
		cfg:     cfg,
		client:  client,
		breaker: NewCircuitBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout),
		metrics: metrics,
		logger:  log,
		live:    make(map[string]Profile),
	}
}

// Prepare pulls the runner image according to the pull policy. Called once
// at startup before any worker is provisioned.
func (s *Sandbox) Prepare(ctx context.Context) error {
	if !s.breaker.Allow() {
		return &CircuitOpenError{RetryAfter: s.breaker.Timeout()}
	}
	if err := s.client.EnsureImage(ctx); err != nil {
		s.breaker.RecordFailure()
		s.metrics.SetCircuitState(s.breaker.State())
		return err
	}
	s.breaker.RecordSuccess()
	return nil
}

// Provision creates and starts a container for one worker.
func (s *Sandbox) Provision(ctx context.Context, name string, profile Profile) (string, error) {
	if !s.breaker.Allow() {
		return "", &CircuitOpenError{RetryAfter: s.breaker.Timeout()}
	}

	id, err := s.client.CreateContainer(ctx, name, profile)
	if err != nil {
		s.breaker.RecordFailure()
		s.metrics.SetCircuitState(s.breaker.State())
		return "", err
	}

	if err := s.client.StartContainer(ctx, id); err != nil {
		// Best effort; the container never ran.
		_ = s.client.RemoveContainer(ctx, id)
		s.breaker.RecordFailure()
		s.metrics.SetCircuitState(s.breaker.State())
		return "", err
	}

	s.breaker.RecordSuccess()
	s.metrics.SetCircuitState(s.breaker.State())

	s.mu.Lock()
	s.live[id] = profile
	s.metrics.SetContainerCount(len(s.live))
	s.mu.Unlock()

	s.logger.Info("sandbox container provisioned",
		logger.Field{Key: "container_id", Value: id},
		logger.Field{Key: "worker", Value: name},
		logger.Field{Key: "network", Value: profile.Network})

	return id, nil
}

// Execute runs a script in the container under the given deadline.
func (s *Sandbox) Execute(ctx context.Context, containerID, script string, timeout time.Duration) (*ExecResult, error) {
	if !s.breaker.Allow() {
		return nil, &CircuitOpenError{RetryAfter: s.breaker.Timeout()}
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := s.client.RunScript(execCtx, containerID, script)
	if err != nil {
		s.breaker.RecordFailure()
		s.metrics.SetCircuitState(s.breaker.State())
		if execCtx.Err() == context.DeadlineExceeded {
			s.metrics.RecordExec("timeout", time.Since(start))
			return nil, &ExecTimeoutError{Timeout: timeout}
		}
		s.metrics.RecordExec("error", time.Since(start))
		return nil, err
	}

	s.breaker.RecordSuccess()
	s.metrics.SetCircuitState(s.breaker.State())

	status := "completed"
	if result.ExitCode != 0 {
		status = "failed"
	}
	s.metrics.RecordExec(status, result.Duration)

	return result, nil
}

// Usage reads measured resource consumption for a container.
func (s *Sandbox) Usage(ctx context.Context, containerID string) (*Usage, error) {
	return s.client.Stats(ctx, containerID)
}

// Release stops and removes a container.
func (s *Sandbox) Release(ctx context.Context, containerID string) {
	stopTimeout := 5
	if err := s.client.StopContainer(ctx, containerID, &stopTimeout); err != nil {
		s.logger.Warn("failed to stop container",
			logger.Field{Key: "container_id", Value: containerID},
			logger.Field{Key: "error", Value: err})
	}
	if err := s.client.RemoveContainer(ctx, containerID); err != nil {
		s.logger.Warn("failed to remove container",
			logger.Field{Key: "container_id", Value: containerID},
			logger.Field{Key: "error", Value: err})
	}

	s.mu.Lock()
	delete(s.live, containerID)
	s.metrics.SetContainerCount(len(s.live))
	s.mu.Unlock()

	s.logger.Info("sandbox container released",
		logger.Field{Key: "container_id", Value: containerID})
}

// Close releases every live container and closes the runtime client.
func (s *Sandbox) Close(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Release(ctx, id)
	}
	return s.client.Close()
}

// BreakerState exposes the circuit state for health reporting.
func (s *Sandbox) BreakerState() CircuitState {
	return s.breaker.State()
}
