package agent

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aatumaykin/nexos/internal/logger"
)

var (
	// ErrDuplicateID is returned when registering an agent id twice.
	// This is a programming error and is never retried.
	ErrDuplicateID = errors.New("agent id already registered")

	// ErrNotActive is returned when registering an agent that is not in
	// active status.
	ErrNotActive = errors.New("agent is not in active status")

	// ErrNotFound is returned when looking up an unknown agent id.
	ErrNotFound = errors.New("agent not found")
)

// Registry holds the process-lifetime set of agents. Registration of a
// duplicate id or a non-active agent fails immediately; re-registration
// of a known agent (recovery) is idempotent.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	logger *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		agents: make(map[string]*Agent),
		logger: log,
	}
}

// Register adds a new agent. The agent must be in active status and its id
// must not already be registered.
func (r *Registry) Register(a *Agent) error {
	if a.Status() != StatusActive {
		return fmt.Errorf("register %s: %w", a.ID, ErrNotActive)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[a.ID]; exists {
		return fmt.Errorf("register %s: %w", a.ID, ErrDuplicateID)
	}

	r.agents[a.ID] = a
	r.logger.Info("agent registered",
		logger.Field{Key: "agent_id", Value: a.ID},
		logger.Field{Key: "agent_type", Value: a.Type},
		logger.Field{Key: "clearance", Value: a.Clearance})
	return nil
}

// Reregister re-initializes a known agent after a health-check failure:
// status back to active, heartbeat refreshed. Idempotent.
func (r *Registry) Reregister(id string) error {
	r.mu.RLock()
	a, ok := r.agents[id]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("reregister %s: %w", id, ErrNotFound)
	}

	a.SetStatus(StatusActive)
	a.Heartbeat()
	r.logger.Info("agent re-registered",
		logger.Field{Key: "agent_id", Value: id})
	return nil
}

// Get returns the agent with the given id.
func (r *Registry) Get(id string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return a, nil
}

// List returns all registered agents.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	return agents
}

// Summaries returns snapshots of all registered agents.
func (r *Registry) Summaries() []Summary {
	agents := r.List()
	summaries := make([]Summary, 0, len(agents))
	for _, a := range agents {
		summaries = append(summaries, a.Snapshot())
	}
	return summaries
}
