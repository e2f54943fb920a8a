// Package retry provides a bounded retry mechanism with exponential backoff.
// It is used by the coordinator for task re-attempts and for its own startup
// sequence. Retryability is decided by the error itself when it implements
// the Classifier interface, with a message-pattern fallback for errors coming
// from external clients.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/nexos/internal/logger"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 10 * time.Second
)

// Classifier is implemented by errors that know whether a retry can help.
// Security rejections and programming errors return false; transient
// execution failures return true.
type Classifier interface {
	Retryable() bool
}

// Config represents retry configuration.
type Config struct {
	MaxAttempts    int            // Maximum number of attempts, first try included (default: 3)
	InitialBackoff time.Duration  // Initial backoff duration (default: 1s)
	MaxBackoff     time.Duration  // Maximum backoff duration (default: 10s)
	Logger         *logger.Logger // Optional; nil disables attempt logging
}

// DoWithRetry executes fn until it succeeds, returns a non-retryable error,
// or the attempt budget is exhausted. Context cancellation is honored between
// attempts and during backoff waits.
func DoWithRetry(ctx context.Context, fn func() (string, error), cfg Config) (string, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialDelay
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxDelay
	}

	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return "", err
		}

		if cfg.Logger != nil {
			cfg.Logger.DebugCtx(ctx, "retryable failure",
				logger.Field{Key: "attempt", Value: attempt + 1},
				logger.Field{Key: "max_attempts", Value: cfg.MaxAttempts},
				logger.Field{Key: "error", Value: err})
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		backoff := calculateBackoff(attempt, cfg.InitialBackoff, cfg.MaxBackoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}

// IsRetryable reports whether an error is worth retrying.
// Errors implementing Classifier decide for themselves. Everything else is
// classified by message: timeouts, connection problems, rate limits and 5xx
// responses are retryable; auth failures, bad requests and explicit
// cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var c Classifier
	if errors.As(err, &c) {
		return c.Retryable()
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	errLower := strings.ToLower(err.Error())

	nonRetryablePatterns := []string{
		"401", // Unauthorized
		"403", // Forbidden
		"400", // Bad Request
		"404", // Not Found
		"context canceled",
	}

	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(errLower, pattern) {
			return false
		}
	}

	retryablePatterns := []string{
		"context deadline exceeded",
		"deadline exceeded",
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"temporary",
		"eof",
		"429",
		"too many requests",
		"rate limit",
		"500",
		"502",
		"503",
		"504",
		"connection",
		"network",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errLower, pattern) {
			return true
		}
	}

	return false
}

// calculateBackoff returns 2^attempt * initial, capped at max.
func calculateBackoff(attempt int, initial, max time.Duration) time.Duration {
	backoff := time.Duration(1<<uint(attempt)) * initial
	if backoff > max {
		return max
	}
	return backoff
}
