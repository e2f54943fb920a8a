// Package translator turns natural-language commands into POSIX sh scripts.
// Translation is a fixed pipeline: intent classification, parameter
// extraction, template generation, denylist validation of the body, then an
// optimization pass that strips comments and attaches the trusted runtime
// preamble. The generated script is stored in an LRU registry keyed by id
// so it can be redeployed without re-translation.
package translator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aatumaykin/nexos/internal/config"
	"github.com/aatumaykin/nexos/internal/logger"
)

// Script is a generated, validated, ready-to-run shell script.
type Script struct {
	ID        string
	TaskID    string
	Intent    Intent
	Content   string
	CreatedAt time.Time
}

// TranslationError reports a failed translation attempt.
type TranslationError struct {
	Stage  string
	Reason string
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation failed at %s: %s", e.Stage, e.Reason)
}

// Retryable keeps translation failures inside the normal retry budget.
func (e *TranslationError) Retryable() bool { return true }

// Translator generates scripts and owns the script registry.
type Translator struct {
	registry *Registry
	logger   *logger.Logger
}

func New(cfg config.TranslatorConfig, log *logger.Logger) (*Translator, error) {
	registry, err := NewRegistry(cfg.RegistrySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create script registry: %w", err)
	}
	return &Translator{
		registry: registry,
		logger:   log,
	}, nil
}

// Translate runs the full pipeline for one command. The returned script is
// already registered.
func (t *Translator) Translate(taskID, command string) (*Script, error) {
	intent := classifyIntent(command)
	p := extractParams(command)

	body, err := generateBody(intent, command, p)
	if err != nil {
		return nil, err
	}

	if verr := validateBody(body); verr != nil {
		t.logger.Warn("generated script rejected by validation",
			logger.Field{Key: "task_id", Value: taskID},
			logger.Field{Key: "intent", Value: intent},
			logger.Field{Key: "line", Value: verr.Line},
			logger.Field{Key: "reason", Value: verr.Reason})
		return nil, &TranslationError{Stage: "validation", Reason: verr.Reason}
	}

	script := &Script{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		Intent:    intent,
		Content:   wrap(stripComments(body)),
		CreatedAt: time.Now(),
	}
	t.registry.Store(script)

	t.logger.Debug("command translated",
		logger.Field{Key: "task_id", Value: taskID},
		logger.Field{Key: "script_id", Value: script.ID},
		logger.Field{Key: "intent", Value: intent})

	return script, nil
}

// Lookup fetches a previously generated script by id for redeployment.
func (t *Translator) Lookup(scriptID string) (*Script, bool) {
	return t.registry.Get(scriptID)
}
