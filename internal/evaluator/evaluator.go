// Package evaluator analyzes submitted task text for security risk,
// estimates complexity and cost, and decides whether a task runs locally
// (translated script on a worker) or remotely (external LLM call).
// A task flagged insecure is rejected before any routing or execution and
// that decision is never retried.
package evaluator

import (
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/nexos/internal/audit"
	"github.com/aatumaykin/nexos/internal/config"
	"github.com/aatumaykin/nexos/internal/logger"
)

// RouteKind says where a task executes.
type RouteKind string

const (
	RouteLocal  RouteKind = "local"
	RouteRemote RouteKind = "remote"
)

// Route is the routing decision for one evaluation.
type Route struct {
	Kind      RouteKind
	ModelHint string
	Reason    string
}

// Evaluation is the immutable result of one evaluation attempt. Retried
// tasks are re-evaluated; evaluations are never cached across attempts.
type Evaluation struct {
	Complexity      float64
	TechnicalDepth  float64
	EstimatedTokens int
	Route           Route
	EstimatedCost   float64
}

// SecurityError rejects a task before routing. It is terminal: the
// coordinator never retries a security rejection.
type SecurityError struct {
	Reason     string
	Categories []string
}

func (e *SecurityError) Error() string {
	if len(e.Categories) > 0 {
		return fmt.Sprintf("task rejected: %s (flags: %s)", e.Reason, strings.Join(e.Categories, ", "))
	}
	return fmt.Sprintf("task rejected: %s", e.Reason)
}

// Retryable marks security rejections as terminal for the retry machinery.
func (e *SecurityError) Retryable() bool { return false }

// technicalKeywords raise the complexity estimate when present.
var technicalKeywords = []string{
	"analyze", "aggregate", "transform", "convert", "compile", "deploy",
	"database", "pipeline", "optimize", "benchmark", "migrate", "refactor",
	"summarize", "classify", "regression", "train", "schedule", "monitor",
}

// depthKeywords raise the technical-depth estimate.
var depthKeywords = []string{
	"algorithm", "architecture", "concurrency", "distributed", "encryption",
	"protocol", "kernel", "compiler", "statistics", "vector", "embedding",
}

// Evaluator screens and routes tasks. It owns the per-key rate limiter and
// writes one audit entry per evaluation, success or failure.
type Evaluator struct {
	cfg     config.EvaluatorConfig
	pricing *pricingTable
	limiter *keyedRateLimiter
	audit   *audit.Log
	logger  *logger.Logger
}

// New creates an evaluator from configuration.
func New(cfg config.EvaluatorConfig, auditLog *audit.Log, log *logger.Logger) (*Evaluator, error) {
	pricing, err := loadPricing()
	if err != nil {
		return nil, err
	}

	return &Evaluator{
		cfg:     cfg,
		pricing: pricing,
		limiter: newKeyedRateLimiter(cfg.RateLimitPerWindow, time.Duration(cfg.RateWindowSeconds)*time.Second),
		audit:   auditLog,
		logger:  log,
	}, nil
}

// Evaluate screens the task text and produces a routing decision.
// Order matters: the rate limit gates the scan, the scan gates routing.
func (e *Evaluator) Evaluate(sessionID, taskText string) (*Evaluation, error) {
	if allowed, retryAfter := e.limiter.Allow(rateKey(sessionID, taskText)); !allowed {
		e.record(taskText, audit.OutcomeFailure, "rate_limited")
		e.logger.Warn("task rate limited",
			logger.Field{Key: "retry_after", Value: retryAfter})
		return nil, &SecurityError{Reason: "rate_limited"}
	}

	if result := scan(taskText); !result.Secure {
		e.record(taskText, audit.OutcomeFailure, strings.Join(result.Categories, ","))
		e.logger.Warn("task failed security analysis",
			logger.Field{Key: "risk_score", Value: result.RiskScore},
			logger.Field{Key: "categories", Value: result.Categories})
		return nil, &SecurityError{Reason: "security analysis failed", Categories: result.Categories}
	}

	eval := e.estimate(taskText)
	e.record(taskText, audit.OutcomeSuccess, string(eval.Route.Kind))

	e.logger.Debug("task evaluated",
		logger.Field{Key: "complexity", Value: eval.Complexity},
		logger.Field{Key: "estimated_tokens", Value: eval.EstimatedTokens},
		logger.Field{Key: "route", Value: eval.Route.Kind},
		logger.Field{Key: "model_hint", Value: eval.Route.ModelHint},
		logger.Field{Key: "estimated_cost", Value: eval.EstimatedCost})

	return eval, nil
}

// Prune drops idle rate-limit buckets; wired to the maintenance schedule.
func (e *Evaluator) Prune() {
	e.limiter.prune()
}

// estimate derives the complexity scalars and the routing decision.
// The heuristics are deliberately simple: word count and keyword hits,
// no NLP.
func (e *Evaluator) estimate(taskText string) *Evaluation {
	lower := strings.ToLower(taskText)
	words := len(strings.Fields(taskText))

	complexity := 0.1 + 0.01*float64(words)
	for _, kw := range technicalKeywords {
		if strings.Contains(lower, kw) {
			complexity += 0.1
		}
	}
	complexity = clamp01(complexity)

	depth := 0.05
	for _, kw := range depthKeywords {
		if strings.Contains(lower, kw) {
			depth += 0.15
		}
	}
	depth = clamp01(depth)

	estimatedTokens := int(float64(len(taskText)) * 1.5)

	eval := &Evaluation{
		Complexity:      complexity,
		TechnicalDepth:  depth,
		EstimatedTokens: estimatedTokens,
	}

	if complexity < e.cfg.ComplexityThreshold && estimatedTokens < e.cfg.TokenThreshold {
		eval.Route = Route{
			Kind:   RouteLocal,
			Reason: fmt.Sprintf("complexity %.2f below %.2f and %d tokens below %d", complexity, e.cfg.ComplexityThreshold, estimatedTokens, e.cfg.TokenThreshold),
		}
		eval.EstimatedCost = 0
		return eval
	}

	model := e.pricing.DefaultModel
	if depth > 0.8 && e.pricing.PremiumModel != "" {
		model = e.pricing.PremiumModel
	}

	eval.Route = Route{
		Kind:      RouteRemote,
		ModelHint: model,
		Reason:    fmt.Sprintf("complexity %.2f or %d tokens above local thresholds", complexity, estimatedTokens),
	}
	eval.EstimatedCost = float64(estimatedTokens) * e.pricing.rate(model)
	return eval
}

func (e *Evaluator) record(taskText string, outcome audit.Outcome, reason string) {
	details := taskText
	if len(details) > 200 {
		details = details[:200]
	}
	e.audit.Record(audit.Entry{
		Action:  "evaluate",
		Details: details,
		Outcome: outcome,
		Reason:  reason,
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
