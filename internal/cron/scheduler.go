// Package cron runs the background upkeep jobs on robfig/cron schedules:
// idle worker reclamation, audit log flushing, rate-limit bucket pruning.
// Jobs are registered before Start; a panicking job is logged and does not
// take down the scheduler.
package cron

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/aatumaykin/nexos/internal/logger"
)

// Scheduler wraps a cron runner with named jobs and panic isolation.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *logger.Logger

	mu      sync.Mutex
	jobs    map[string]cron.EntryID
	started bool
}

// NewScheduler creates an idle scheduler. Standard five-field expressions
// and descriptors like "@every 1m" are accepted.
func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger: log,
		jobs:   make(map[string]cron.EntryID),
	}
}

// Add registers a named job. Names must be unique; the schedule is
// validated before registration.
func (s *Scheduler) Add(name, schedule string, fn func()) error {
	if _, err := s.parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid schedule for job %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	id, err := s.cron.AddFunc(schedule, s.wrap(name, fn))
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", name, err)
	}
	s.jobs[name] = id

	s.logger.Debug("maintenance job registered",
		logger.Field{Key: "job", Value: name},
		logger.Field{Key: "schedule", Value: schedule})
	return nil
}

// wrap isolates panics so one broken job cannot stop the others.
func (s *Scheduler) wrap(name string, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("maintenance job panicked", fmt.Errorf("%v", r),
					logger.Field{Key: "job", Value: name})
			}
		}()
		fn()
	}
}

// Start launches the cron runner. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.cron.Start()
	s.started = true

	s.logger.Info("maintenance scheduler started",
		logger.Field{Key: "jobs", Value: len(s.jobs)})
}

// Stop halts scheduling and waits for running jobs to finish or the context
// to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("maintenance scheduler stop timed out")
	}
}

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}
