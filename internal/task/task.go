// Package task defines the task model and the priority queue owned by the
// coordinator. A task is one natural-language command submitted for
// processing; it moves through a fixed lifecycle and is retried a bounded
// number of times on execution failure.
package task

import (
	"time"

	"github.com/google/uuid"
)

// MaxRetries is the total number of attempts a task gets, first try included.
const MaxRetries = 3

// State represents the lifecycle state of a task.
type State string

const (
	StateQueued      State = "queued"
	StateEvaluating  State = "evaluating"
	StateRejected    State = "rejected"
	StateRouting     State = "routing"
	StateTranslating State = "translating"
	StateExecuting   State = "executing"
	StateRemoteCall  State = "remote_call"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Task is one unit of work flowing through the coordinator pipeline.
// Only the coordinator mutates a task after creation.
type Task struct {
	ID         string
	Command    string
	Priority   int
	SessionID  string
	EnqueuedAt time.Time
	RetryCount int
	State      State
}

// New creates a queued task with a fresh id.
func New(command string, priority int, sessionID string) *Task {
	return &Task{
		ID:         uuid.New().String(),
		Command:    command,
		Priority:   priority,
		SessionID:  sessionID,
		EnqueuedAt: time.Now(),
		State:      StateQueued,
	}
}

// MarkRetry increments the retry counter and refreshes the enqueue timestamp
// so the task re-enters its priority band at the back.
func (t *Task) MarkRetry() {
	t.RetryCount++
	t.EnqueuedAt = time.Now()
	t.State = StateQueued
}

// Exhausted reports whether the task has used up its attempt budget.
func (t *Task) Exhausted() bool {
	return t.RetryCount >= MaxRetries-1
}
