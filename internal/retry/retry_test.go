package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type classifiedError struct {
	msg       string
	retryable bool
}

func (e *classifiedError) Error() string   { return e.msg }
func (e *classifiedError) Retryable() bool { return e.retryable }

func TestDoWithRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := DoWithRetry(context.Background(), func() (string, error) {
		calls++
		return "ok", nil
	}, Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDoWithRetry_RetriesTransientError(t *testing.T) {
	calls := 0
	result, err := DoWithRetry(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection refused")
		}
		return "recovered", nil
	}, Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, 3, calls)
}

func TestDoWithRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := DoWithRetry(context.Background(), func() (string, error) {
		calls++
		return "", &classifiedError{msg: "task rejected", retryable: false}
	}, Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoWithRetry(context.Background(), func() (string, error) {
		calls++
		return "", &classifiedError{msg: "worker unavailable", retryable: true}
	}, Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
}

func TestDoWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := DoWithRetry(ctx, func() (string, error) {
		calls++
		cancel()
		return "", errors.New("timeout")
	}, Config{MaxAttempts: 5, InitialBackoff: 50 * time.Millisecond, MaxBackoff: time.Second})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"classifier retryable", &classifiedError{msg: "pool full", retryable: true}, true},
		{"classifier terminal", &classifiedError{msg: "security", retryable: false}, false},
		{"timeout message", errors.New("request timeout"), true},
		{"rate limit message", errors.New("429 too many requests"), true},
		{"unauthorized", errors.New("401 unauthorized"), false},
		{"context canceled", context.Canceled, false},
		{"unknown error", errors.New("something odd happened"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	initial := 100 * time.Millisecond
	max := time.Second

	assert.Equal(t, 100*time.Millisecond, calculateBackoff(0, initial, max))
	assert.Equal(t, 200*time.Millisecond, calculateBackoff(1, initial, max))
	assert.Equal(t, 400*time.Millisecond, calculateBackoff(2, initial, max))
	assert.Equal(t, max, calculateBackoff(10, initial, max))
}
