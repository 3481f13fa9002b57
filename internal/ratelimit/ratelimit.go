// Package ratelimit implements a sliding-window rate limiter. Unlike a token
// bucket, the window keeps the exact request timestamps, so callers can ask
// how many slots remain and how long until the next one frees up.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWaitTimeout is returned by WaitForAvailability when no slot opened
// within the caller's timeout.
var ErrWaitTimeout = errors.New("ratelimit: timed out waiting for available slot")

const defaultPollInterval = 100 * time.Millisecond

// Limiter permits at most maxRequests recorded requests inside any trailing
// window. All methods are safe for concurrent use.
type Limiter struct {
	mu           sync.Mutex
	maxRequests  int
	window       time.Duration
	timestamps   []time.Time
	now          func() time.Time
	pollInterval time.Duration
}

// New constructs a Limiter allowing maxRequests per window.
func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		maxRequests:  maxRequests,
		window:       window,
		timestamps:   make([]time.Time, 0, maxRequests),
		now:          time.Now,
		pollInterval: defaultPollInterval,
	}
}

// CanRequest reports whether a request made now would stay within the limit.
func (l *Limiter) CanRequest() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.canRequestLocked()
}

// Record registers a request at the current time. Callers check CanRequest
// first; Record never blocks or rejects.
func (l *Limiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	l.timestamps = append(l.timestamps, l.now())
}

// TryAcquire atomically checks the window and records on success. Concurrent
// callers cannot both claim the final slot.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.canRequestLocked() {
		return false
	}
	l.timestamps = append(l.timestamps, l.now())
	return true
}

// RequestsRemaining returns how many requests the current window still admits.
func (l *Limiter) RequestsRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked()
	remaining := l.maxRequests - len(l.timestamps)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TimeUntilNextSlot returns how long until a slot opens. Zero means a request
// is admissible immediately.
func (l *Limiter) TimeUntilNextSlot() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.canRequestLocked() {
		return 0
	}

	// Full window: the oldest tracked request leaving the window frees a slot.
	oldest := l.timestamps[0]
	until := oldest.Add(l.window).Sub(l.now())
	if until < 0 {
		return 0
	}
	return until
}

// WaitForAvailability blocks until a slot is available, polling the window.
// It returns ErrWaitTimeout when the timeout elapses first, or ctx.Err() if
// the context is done. It does not record the request; callers Record (or
// use TryAcquire) once they proceed.
func (l *Limiter) WaitForAvailability(ctx context.Context, timeout time.Duration) error {
	if l.CanRequest() {
		return nil
	}

	deadline := l.now().Add(timeout)
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.CanRequest() {
				return nil
			}
			if !l.now().Before(deadline) {
				return ErrWaitTimeout
			}
		}
	}
}

func (l *Limiter) canRequestLocked() bool {
	l.pruneLocked()
	return len(l.timestamps) < l.maxRequests
}

// pruneLocked drops timestamps that fell out of the trailing window.
func (l *Limiter) pruneLocked() {
	cutoff := l.now().Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}
