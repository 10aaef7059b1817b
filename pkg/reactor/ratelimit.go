package reactor

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter tracks one golang.org/x/time/rate.Limiter per
// (session_id, handler_name) pair, lazily created on first use. A
// handler's {calls_per_window, window_seconds} is modeled as a token
// bucket refilling at window_seconds/calls_per_window with a burst equal
// to calls_per_window, which matches the spec's steady-state rate while
// reusing a maintained library instead of hand-rolled sliding windows.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (r *rateLimiter) allow(sessionID, handlerName string, limit RateLimit) bool {
	key := sessionID + "\x00" + handlerName

	r.mu.Lock()
	l, ok := r.limiters[key]
	if !ok {
		every := time.Duration(float64(limit.WindowSeconds) / float64(limit.CallsPerWindow) * float64(time.Second))
		l = rate.NewLimiter(rate.Every(every), limit.CallsPerWindow)
		r.limiters[key] = l
	}
	r.mu.Unlock()

	return l.Allow()
}
