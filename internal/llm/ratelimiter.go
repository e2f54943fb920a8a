package llm

import (
	"sync"
	"time"
)

// RateLimitExceededError is returned when the request budget is spent.
type RateLimitExceededError struct {
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return "rate limit exceeded"
}

func (e *RateLimitExceededError) Retryable() bool { return true }

// TokenBucketRateLimiter implements the token bucket algorithm for
// smoothing request bursts toward the provider.
type TokenBucketRateLimiter struct {
	capacity     int
	tokens       int
	refillRate   time.Duration
	refillAmount int
	lastRefill   time.Time
	mu           sync.Mutex
	metrics      *RateLimitMetrics
}

// RateLimitMetrics tracks limiter decisions.
type RateLimitMetrics struct {
	TotalRequests    int64
	AllowedRequests  int64
	RejectedRequests int64
}

// NewTokenBucketRateLimiter creates a limiter that starts full and refills
// refillAmount tokens every refillInterval, capped at capacity.
func NewTokenBucketRateLimiter(capacity int, refillInterval time.Duration, refillAmount int) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		capacity:     capacity,
		tokens:       capacity,
		refillRate:   refillInterval,
		refillAmount: refillAmount,
		lastRefill:   time.Now(),
		metrics:      &RateLimitMetrics{},
	}
}

// TryAcquire takes a token if one is available. When denied it returns the
// wait until the next refill.
func (r *TokenBucketRateLimiter) TryAcquire() (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.TotalRequests++

	now := time.Now()
	elapsed := now.Sub(r.lastRefill)

	if elapsed >= r.refillRate {
		intervals := int(elapsed / r.refillRate)

		tokensToAdd := intervals * r.refillAmount
		if r.tokens+tokensToAdd > r.capacity {
			r.tokens = r.capacity
		} else {
			r.tokens += tokensToAdd
		}

		// Keep the remainder so refill timing stays accurate.
		r.lastRefill = now.Add(-elapsed % r.refillRate)
	}

	if r.tokens > 0 {
		r.tokens--
		r.metrics.AllowedRequests++
		return true, 0
	}

	timeToNextRefill := r.refillRate - (now.Sub(r.lastRefill) % r.refillRate)
	r.metrics.RejectedRequests++

	return false, timeToNextRefill
}

// GetMetrics returns a copy of the current metrics.
func (r *TokenBucketRateLimiter) GetMetrics() RateLimitMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.metrics
}

// Reset restores the limiter to its initial state.
func (r *TokenBucketRateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens = r.capacity
	r.lastRefill = time.Now()
	r.metrics = &RateLimitMetrics{}
}

// GetAvailableTokens returns the current token count.
func (r *TokenBucketRateLimiter) GetAvailableTokens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens
}
