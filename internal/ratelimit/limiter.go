// Package ratelimit provides a process-local sliding-window request limiter
// keyed by installation id. It is injected into the HTTP handlers rather
// than held as ambient state; enforcement is best-effort and resets on
// process restart.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks request timestamps per key over a rolling window.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	keys   map[string][]time.Time
}

// New creates a Limiter allowing limit requests per key per window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		keys:   make(map[string][]time.Time),
	}
}

// Allow reports whether a request for key may proceed, recording it if so.
// Entries older than the window are pruned on every check, so memory stays
// proportional to recently active keys.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.keys[key][:0]
	for _, ts := range l.keys[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.limit {
		l.keys[key] = recent
		return false
	}

	l.keys[key] = append(recent, now)
	return true
}

// Reset drops all recorded requests for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
}
