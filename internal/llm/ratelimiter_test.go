package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketAllowsUpToCapacity(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(3, time.Second, 1)

	for i := 0; i < 3; i++ {
		ok, _ := limiter.TryAcquire()
		assert.True(t, ok, "request %d should be allowed", i)
	}

	ok, retryAfter := limiter.TryAcquire()
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Second)
}

func TestTokenBucketRefills(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(1, 20*time.Millisecond, 1)

	ok, _ := limiter.TryAcquire()
	assert.True(t, ok)

	ok, _ = limiter.TryAcquire()
	assert.False(t, ok)

	time.Sleep(30 * time.Millisecond)

	ok, _ = limiter.TryAcquire()
	assert.True(t, ok, "token should refill after the interval")
}

func TestTokenBucketMetrics(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(1, time.Minute, 1)

	limiter.TryAcquire()
	limiter.TryAcquire()

	m := limiter.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRequests)
	assert.Equal(t, int64(1), m.AllowedRequests)
	assert.Equal(t, int64(1), m.RejectedRequests)
}

func TestTokenBucketReset(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(1, time.Minute, 1)

	limiter.TryAcquire()
	assert.Equal(t, 0, limiter.GetAvailableTokens())

	limiter.Reset()
	assert.Equal(t, 1, limiter.GetAvailableTokens())
}
