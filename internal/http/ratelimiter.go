package http

import (
	"sync"
	"time"
)

// bucket holds the tokens left for one wiki client.
type bucket struct {
	tokens  float64
	filled  time.Time
	touched time.Time
}

// RateLimiter hands out request tokens per client. A client is an API key
// when the request carries a valid one, otherwise the caller's IP address.
// Idle clients are forgotten after the idle window passes.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	burst     float64
	perSecond float64
	idle      time.Duration
	swept     time.Time
	now       func() time.Time
}

// NewRateLimiter allows burst requests at once, refilled at perSecond.
func NewRateLimiter(burst int, perSecond float64, idle time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:   make(map[string]*bucket),
		burst:     float64(burst),
		perSecond: perSecond,
		idle:      idle,
		now:       time.Now,
	}
}

// Allow spends one token from the client's bucket and reports whether there
// was one to spend.
func (rl *RateLimiter) Allow(client string) bool {
	if client == "" {
		client = "anonymous"
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	b := rl.buckets[client]
	if b == nil {
		b = &bucket{tokens: rl.burst, filled: now}
		rl.buckets[client] = b
	}
	b.touched = now

	if gained := now.Sub(b.filled).Seconds() * rl.perSecond; gained > 0 {
		b.tokens = min(rl.burst, b.tokens+gained)
		b.filled = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Clients reports how many clients are currently tracked.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// sweep drops idle buckets at most once per idle window. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if rl.idle <= 0 || now.Sub(rl.swept) < rl.idle {
		return
	}
	rl.swept = now
	for client, b := range rl.buckets {
		if now.Sub(b.touched) > rl.idle {
			delete(rl.buckets, client)
		}
	}
}
