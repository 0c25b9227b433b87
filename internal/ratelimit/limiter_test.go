package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fixedClock lets tests advance the limiter's notion of time manually.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time { return c.t }

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(capacity int) (*Limiter, *fixedClock) {
	clock := &fixedClock{t: time.Unix(1000, 0)}
	l := New(capacity)
	l.now = clock.now
	return l, clock
}

func TestReserveWithinBudget(t *testing.T) {
	l, _ := newTestLimiter(25)

	for i := 0; i < 5; i++ {
		if err := l.Reserve(context.Background(), 5); err != nil {
			t.Fatalf("reservation %d: %v", i, err)
		}
	}
	if got := l.Snapshot(); got != 25 {
		t.Errorf("expected 25 units used, got %d", got)
	}
}

func TestWindowResets(t *testing.T) {
	l, clock := newTestLimiter(10)

	if err := l.Reserve(context.Background(), 10); err != nil {
		t.Fatalf("first window: %v", err)
	}
	clock.advance(time.Second)
	if err := l.Reserve(context.Background(), 10); err != nil {
		t.Fatalf("second window: %v", err)
	}
	if got := l.Snapshot(); got != 10 {
		t.Errorf("expected fresh window with 10 used, got %d", got)
	}
}

func TestExhaustedWindowBlocksUntilCancel(t *testing.T) {
	l, _ := newTestLimiter(10)
	if err := l.Reserve(context.Background(), 10); err != nil {
		t.Fatalf("setup: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Reserve(ctx, 1)
	if err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded while window is exhausted, got %v", err)
	}
}

func TestOversizedReservationClamped(t *testing.T) {
	l, _ := newTestLimiter(10)
	// 40 units against a 10-unit budget consumes one full window instead
	// of deadlocking.
	if err := l.Reserve(context.Background(), 40); err != nil {
		t.Fatalf("clamped reservation: %v", err)
	}
	if got := l.Snapshot(); got != 10 {
		t.Errorf("expected a full window consumed, got %d", got)
	}
}

func TestNilAndDisabledLimiter(t *testing.T) {
	var l *Limiter
	if err := l.Reserve(context.Background(), 5); err != nil {
		t.Errorf("nil limiter must allow everything: %v", err)
	}
	if err := New(0).Reserve(context.Background(), 5); err != nil {
		t.Errorf("zero-capacity limiter must allow everything: %v", err)
	}
}
