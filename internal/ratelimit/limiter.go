// Package ratelimit enforces the external service's units-per-second
// quota across concurrent dispatchers sharing one account.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter grants text units from a fixed per-second budget. The window
// resets a full second after it was opened; reservations that do not fit
// the current window block until the next one.
type Limiter struct {
	capacity int

	mu          sync.Mutex
	windowStart time.Time
	used        int

	now func() time.Time // injected in tests
}

// New creates a limiter allowing unitsPerSecond units per second.
// A non-positive capacity disables limiting.
func New(unitsPerSecond int) *Limiter {
	return &Limiter{capacity: unitsPerSecond, now: time.Now}
}

// Reserve blocks until units fit into the current one-second window or
// ctx is done. Requests larger than the whole budget are clamped to one
// full window rather than rejected: a maximum-size call simply consumes
// a whole second.
func (l *Limiter) Reserve(ctx context.Context, units int) error {
	if l == nil || l.capacity <= 0 || units <= 0 {
		return nil
	}
	if units > l.capacity {
		units = l.capacity
	}

	for {
		l.mu.Lock()
		now := l.now()
		if now.Sub(l.windowStart) >= time.Second {
			l.windowStart = now
			l.used = 0
		}
		if l.used+units <= l.capacity {
			l.used += units
			l.mu.Unlock()
			return nil
		}
		wait := time.Second - now.Sub(l.windowStart)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Snapshot returns the units consumed in the current window. Stale
// windows read as zero.
func (l *Limiter) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.now().Sub(l.windowStart) >= time.Second {
		return 0
	}
	return l.used
}

// Capacity returns the configured units-per-second budget.
func (l *Limiter) Capacity() int { return l.capacity }
