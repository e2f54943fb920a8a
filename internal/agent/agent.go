// Package agent defines the logical agent roles of the orchestration core
// (coordinator, evaluator, translator), their status, resource allocation
// and processing metrics, and a registry with idempotent re-registration.
// Agents are created once at startup and live for the process lifetime;
// each agent owns its own metrics and nothing else mutates them.
package agent

import (
	"sync"
	"time"
)

// Type identifies the role an agent plays.
type Type string

const (
	TypeCoordinator Type = "coordinator"
	TypeEvaluator   Type = "evaluator"
	TypeTranslator  Type = "translator"
)

// Status is the lifecycle status of an agent.
type Status string

const (
	StatusActive Status = "active"
	StatusIdle   Status = "idle"
	StatusBusy   Status = "busy"
	StatusError  Status = "error"
)

// ResourceAllocation describes the quota envelope granted to an agent.
type ResourceAllocation struct {
	CPUQuota      float64
	MemoryQuotaMB int
	PriorityLevel int
	CurrentLoad   float64
}

// TaskRecord is one completed or failed task in an agent's history.
type TaskRecord struct {
	TaskID    string
	Local     bool
	Success   bool
	Duration  time.Duration
	Timestamp time.Time
}

// ProcessingMetrics aggregates an agent's task history. SuccessRate is
// recomputed from the history after every status change and task record.
type ProcessingMetrics struct {
	LocalTasks   int
	APITasks     int
	SuccessRate  float64
	ResponseTime time.Duration
	TaskHistory  []TaskRecord
}

// historyLimit bounds TaskHistory so long-running processes don't grow
// without bound; the rate computation uses whatever is retained.
const historyLimit = 500

// Agent is a logical role with its own status, clearance and metrics.
type Agent struct {
	ID             string
	Type           Type
	Clearance      int
	Specialization []string

	mu              sync.RWMutex
	status          Status
	allocation      ResourceAllocation
	metrics         ProcessingMetrics
	lastHealthCheck time.Time
}

// New creates an agent in active status with a fresh heartbeat.
func New(id string, typ Type, clearance int, specialization []string, alloc ResourceAllocation) *Agent {
	return &Agent{
		ID:              id,
		Type:            typ,
		Clearance:       clearance,
		Specialization:  specialization,
		status:          StatusActive,
		allocation:      alloc,
		lastHealthCheck: time.Now(),
	}
}

// Status returns the current status.
func (a *Agent) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// SetStatus transitions the agent and recomputes the success rate.
func (a *Agent) SetStatus(s Status) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
	a.recomputeSuccessRate()
}

// Heartbeat records a successful health-check contact.
func (a *Agent) Heartbeat() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastHealthCheck = time.Now()
}

// LastHealthCheck returns the time of the most recent heartbeat.
func (a *Agent) LastHealthCheck() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastHealthCheck
}

// RecordTask appends a task record and refreshes the derived metrics.
func (a *Agent) RecordTask(rec TaskRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if rec.Local {
		a.metrics.LocalTasks++
	} else {
		a.metrics.APITasks++
	}

	a.metrics.TaskHistory = append(a.metrics.TaskHistory, rec)
	if len(a.metrics.TaskHistory) > historyLimit {
		a.metrics.TaskHistory = a.metrics.TaskHistory[len(a.metrics.TaskHistory)-historyLimit:]
	}

	// Running average over the retained history.
	var total time.Duration
	for _, r := range a.metrics.TaskHistory {
		total += r.Duration
	}
	a.metrics.ResponseTime = total / time.Duration(len(a.metrics.TaskHistory))

	a.recomputeSuccessRate()
}

// SetLoad updates the current load figure inside the allocation.
func (a *Agent) SetLoad(load float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.allocation.CurrentLoad = load
}

// Metrics returns a copy of the processing metrics.
func (a *Agent) Metrics() ProcessingMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	m := a.metrics
	m.TaskHistory = make([]TaskRecord, len(a.metrics.TaskHistory))
	copy(m.TaskHistory, a.metrics.TaskHistory)
	return m
}

// Allocation returns a copy of the resource allocation.
func (a *Agent) Allocation() ResourceAllocation {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.allocation
}

// Summary is a read-only snapshot used by status endpoints and dashboards.
type Summary struct {
	ID              string
	Type            Type
	Status          Status
	Clearance       int
	SuccessRate     float64
	LocalTasks      int
	APITasks        int
	ResponseTime    time.Duration
	CurrentLoad     float64
	LastHealthCheck time.Time
}

// Snapshot returns a consistent summary of the agent.
func (a *Agent) Snapshot() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return Summary{
		ID:              a.ID,
		Type:            a.Type,
		Status:          a.status,
		Clearance:       a.Clearance,
		SuccessRate:     a.metrics.SuccessRate,
		LocalTasks:      a.metrics.LocalTasks,
		APITasks:        a.metrics.APITasks,
		ResponseTime:    a.metrics.ResponseTime,
		CurrentLoad:     a.allocation.CurrentLoad,
		LastHealthCheck: a.lastHealthCheck,
	}
}

// recomputeSuccessRate derives completed/total over the task history.
// Callers must hold the write lock. An empty history counts as fully
// healthy so fresh agents are not flagged by the health loop.
func (a *Agent) recomputeSuccessRate() {
	if len(a.metrics.TaskHistory) == 0 {
		a.metrics.SuccessRate = 1.0
		return
	}

	completed := 0
	for _, r := range a.metrics.TaskHistory {
		if r.Success {
			completed++
		}
	}
	a.metrics.SuccessRate = float64(completed) / float64(len(a.metrics.TaskHistory))
}
