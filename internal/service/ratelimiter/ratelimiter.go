// Package ratelimiter provides a sliding-window limiter guarding the
// suggestions endpoint as a whole.
package ratelimiter

import (
	"sync"
	"time"
)

// SlidingWindow admits at most max requests per window, counted over a
// true sliding window of request timestamps rather than fixed buckets.
// Safe for concurrent use.
type SlidingWindow struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	hits   []time.Time

	now func() time.Time
}

// Stats is a point-in-time snapshot of the limiter state.
type Stats struct {
	MaxRequests   int     `json:"max_requests"`
	WindowSeconds float64 `json:"window_seconds"`
	CurrentCount  int     `json:"current_count"`
}

// New constructs a limiter admitting max requests per window.
func New(max int, window time.Duration) *SlidingWindow {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &SlidingWindow{
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Allow records and admits the request if the window has room.
func (l *SlidingWindow) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.pruneLocked(now)
	if len(l.hits) >= l.max {
		return false
	}
	l.hits = append(l.hits, now)
	return true
}

// RetryAfter returns how long until the oldest recorded request falls
// out of the window. Zero when the window has room.
func (l *SlidingWindow) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.pruneLocked(now)
	if len(l.hits) < l.max {
		return 0
	}
	wait := l.hits[0].Add(l.window).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait
}

// Stats returns a snapshot of the limiter state.
func (l *SlidingWindow) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.now())
	return Stats{
		MaxRequests:   l.max,
		WindowSeconds: l.window.Seconds(),
		CurrentCount:  len(l.hits),
	}
}

// pruneLocked drops timestamps strictly older than the window; one
// exactly a window old still counts. Caller must hold l.mu.
func (l *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.hits) && l.hits[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.hits = append(l.hits[:0], l.hits[i:]...)
	}
}
