package evaluator

import (
	"strings"
	"sync"
	"time"
)

// keyedRateLimiter enforces a sliding-window request limit per key.
// The window is pruned on every check; idle keys are dropped so the map
// does not grow without bound.
type keyedRateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	seen   map[string][]time.Time
}

func newKeyedRateLimiter(limit int, window time.Duration) *keyedRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &keyedRateLimiter{
		limit:  limit,
		window: window,
		seen:   make(map[string][]time.Time),
	}
}

// Allow records a request for the key and reports whether it is within the
// window limit. When denied it returns how long until the oldest request
// leaves the window.
func (r *keyedRateLimiter) Allow(key string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	stamps := r.seen[key]
	pruned := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= r.limit {
		r.seen[key] = pruned
		retryAfter := pruned[0].Sub(cutoff)
		return false, retryAfter
	}

	r.seen[key] = append(pruned, now)
	return true, 0
}

// prune drops keys with no requests inside the window. Called from the
// maintenance schedule.
func (r *keyedRateLimiter) prune() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)
	for key, stamps := range r.seen {
		live := false
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(r.seen, key)
		}
	}
}

// rateKey derives the rate-limit bucket: session identity when the caller
// provides one, otherwise normalized task text so rephrasing stays in the
// same bucket.
func rateKey(sessionID, taskText string) string {
	if sessionID != "" {
		return "session:" + sessionID
	}
	return "text:" + strings.Join(strings.Fields(normalizeForDetection(taskText)), " ")
}
