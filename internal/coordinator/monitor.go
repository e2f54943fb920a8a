package coordinator

import (
	"time"

	"github.com/aatumaykin/nexos/internal/agent"
	"github.com/aatumaykin/nexos/internal/logger"
	"github.com/aatumaykin/nexos/internal/task"
)

// monitorLoop samples queue depth and pool load on a fixed interval and
// engages throttling while aggregate load stays above the configured
// thresholds. The loop also heartbeats the core agents: as long as it runs,
// the process is alive.
func (c *Coordinator) monitorLoop() {
	defer c.wg.Done()

	interval := secondsOr(c.cfg.MonitorIntervalSeconds, 5*time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
		}

		c.agentCoordinator.Heartbeat()
		c.agentEvaluator.Heartbeat()
		c.agentTranslator.Heartbeat()

		depth := c.queue.Len()
		c.metrics.SetQueueDepth(depth)
		cpu, mem := c.pool.AggregateUsage()

		c.logger.Debug("system snapshot",
			logger.Field{Key: "queue_depth", Value: depth},
			logger.Field{Key: "queue_depths", Value: c.queue.Depths()},
			logger.Field{Key: "pool_cpu", Value: cpu},
			logger.Field{Key: "pool_memory", Value: mem},
			logger.Field{Key: "agents", Value: c.registry.Summaries()})

		if cpu > c.cfg.ThrottleCPUPercent || mem > c.cfg.ThrottleMemoryPercent {
			c.throttle(cpu, mem)
		} else if c.throttled.CompareAndSwap(true, false) {
			c.liftThrottle()
		}
	}
}

// throttle sheds load: low-priority queued tasks are dropped and
// low-clearance agents are idled until pressure eases.
func (c *Coordinator) throttle(cpu, mem float64) {
	engaged := c.throttled.CompareAndSwap(false, true)

	dropped := c.queue.DropAtOrBelow(c.cfg.ThrottlePriorityFloor)
	for _, t := range dropped {
		t.State = task.StateFailed
		c.metrics.RecordTask("throttled", 0)
		c.tracker.Complete(t.ID, &Result{
			TaskID:   t.ID,
			State:    task.StateFailed,
			Attempts: t.RetryCount + 1,
			Err:      &SubmitError{Code: "throttled", Message: "task dropped under resource pressure"},
		})
	}
	c.metrics.SetQueueDepth(c.queue.Len())

	for _, a := range c.registry.List() {
		if a.Clearance < c.cfg.ThrottleClearanceFloor && a.Status() == agent.StatusActive {
			a.SetStatus(agent.StatusIdle)
		}
	}

	if engaged {
		c.metrics.RecordThrottle()
	}
	if engaged || len(dropped) > 0 {
		c.logger.Warn("throttling engaged",
			logger.Field{Key: "pool_cpu", Value: cpu},
			logger.Field{Key: "pool_memory", Value: mem},
			logger.Field{Key: "dropped_tasks", Value: len(dropped)})
	}
}

// liftThrottle reactivates the agents idled by throttling.
func (c *Coordinator) liftThrottle() {
	for _, a := range c.registry.List() {
		if a.Clearance < c.cfg.ThrottleClearanceFloor && a.Status() == agent.StatusIdle {
			a.SetStatus(agent.StatusActive)
		}
	}
	c.logger.Info("throttling lifted")
}

// healthLoop flags agents with stale heartbeats or a low success rate and
// recovers them through re-registration.
func (c *Coordinator) healthLoop() {
	defer c.wg.Done()

	interval := secondsOr(c.cfg.HealthIntervalSeconds, 10*time.Second)
	stale := secondsOr(c.cfg.HeartbeatStaleSeconds, 60*time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
		}

		c.checkAgents(stale)
	}
}

// checkAgents runs one health pass over every registered agent.
func (c *Coordinator) checkAgents(stale time.Duration) {
	for _, a := range c.registry.List() {
		snap := a.Snapshot()
		heartbeatStale := time.Since(snap.LastHealthCheck) > stale
		lowSuccess := snap.SuccessRate < c.cfg.MinSuccessRate
		if !heartbeatStale && !lowSuccess {
			continue
		}

		a.SetStatus(agent.StatusError)
		c.logger.Warn("agent unhealthy",
			logger.Field{Key: "agent_id", Value: snap.ID},
			logger.Field{Key: "heartbeat_stale", Value: heartbeatStale},
			logger.Field{Key: "success_rate", Value: snap.SuccessRate})

		if err := c.registry.Reregister(a.ID); err != nil {
			c.logger.Error("agent recovery failed", err,
				logger.Field{Key: "agent_id", Value: snap.ID})
		}
	}
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
