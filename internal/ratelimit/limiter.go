package ratelimit

import (
	"sync"
	"time"
)

// idleWindows is how many full windows a client may stay silent before its
// bucket is swept.
const idleWindows = 3

// Decision reports the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int

	// RetryAfter is how long until the current window rolls over. Only
	// meaningful on rejection.
	RetryAfter time.Duration
}

type bucket struct {
	windowStart time.Time
	count       int
}

// Limiter enforces a single Rate across many clients. Each client identity
// gets its own fixed window; the first request after a window expires starts
// a fresh one.
type Limiter struct {
	mu        sync.Mutex
	rate      Rate
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewLimiter builds a limiter for one parsed rule.
func NewLimiter(rate Rate) *Limiter {
	return &Limiter{
		rate:    rate,
		buckets: make(map[string]*bucket),
	}
}

// Rate returns the rule this limiter enforces.
func (l *Limiter) Rate() Rate {
	return l.rate
}

// Allow decides whether a request from client may proceed at time now.
// A nil limiter admits everything.
func (l *Limiter) Allow(client string, now time.Time) Decision {
	if l == nil {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	b := l.buckets[client]
	if b == nil {
		b = &bucket{windowStart: now}
		l.buckets[client] = b
	} else if now.Sub(b.windowStart) >= l.rate.Window {
		b.windowStart = now
		b.count = 0
	}

	if b.count >= l.rate.Limit {
		return Decision{
			Allowed:    false,
			Limit:      l.rate.Limit,
			Remaining:  0,
			RetryAfter: b.windowStart.Add(l.rate.Window).Sub(now),
		}
	}

	b.count++
	return Decision{
		Allowed:   true,
		Limit:     l.rate.Limit,
		Remaining: l.rate.Limit - b.count,
	}
}

// sweepLocked drops buckets whose window expired long enough ago that the
// client would start fresh anyway. Runs at most once per window.
func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.rate.Window {
		return
	}
	l.lastSweep = now

	idle := time.Duration(idleWindows) * l.rate.Window
	for client, b := range l.buckets {
		if now.Sub(b.windowStart) >= idle {
			delete(l.buckets, client)
		}
	}
}
