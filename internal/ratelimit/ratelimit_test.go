package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock drives limiter time by hand.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(maxRequests int, window time.Duration) (*Limiter, *fakeClock) {
	clock := newFakeClock()
	l := New(maxRequests, window)
	l.now = clock.now
	return l, clock
}

func TestLimiter_WindowSafety(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.CanRequest() {
			t.Fatalf("request %d should be admissible", i)
		}
		l.Record()
		clock.advance(time.Second)
	}

	if l.CanRequest() {
		t.Error("fourth request inside the window must be denied")
	}
	if got := l.RequestsRemaining(); got != 0 {
		t.Errorf("RequestsRemaining = %d, want 0", got)
	}
}

func TestLimiter_SlotFreesWhenOldestLeavesWindow(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	l.Record()
	clock.advance(30 * time.Second)
	l.Record()

	if l.CanRequest() {
		t.Fatal("window is full")
	}

	// 31s more puts the first request outside the 60s window.
	clock.advance(31 * time.Second)

	if !l.CanRequest() {
		t.Error("slot should free once the oldest request ages out")
	}
	if got := l.RequestsRemaining(); got != 1 {
		t.Errorf("RequestsRemaining = %d, want 1", got)
	}
}

func TestLimiter_TimeUntilNextSlot(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	if got := l.TimeUntilNextSlot(); got != 0 {
		t.Errorf("empty limiter: TimeUntilNextSlot = %v, want 0", got)
	}

	l.Record()
	clock.advance(20 * time.Second)

	if got := l.TimeUntilNextSlot(); got != 40*time.Second {
		t.Errorf("TimeUntilNextSlot = %v, want 40s", got)
	}

	clock.advance(40 * time.Second)
	if got := l.TimeUntilNextSlot(); got != 0 {
		t.Errorf("after expiry: TimeUntilNextSlot = %v, want 0", got)
	}
}

func TestLimiter_RequestsRemainingNeverNegative(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)

	// Record ignores the limit; Remaining still clamps at zero.
	l.Record()
	l.Record()
	l.Record()

	if got := l.RequestsRemaining(); got != 0 {
		t.Errorf("RequestsRemaining = %d, want 0", got)
	}
}

func TestLimiter_TryAcquireConcurrent(t *testing.T) {
	l := New(5, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryAcquire() {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acquired != 5 {
		t.Errorf("acquired = %d, want exactly 5", acquired)
	}
}

func TestLimiter_WaitForAvailability_Immediate(t *testing.T) {
	l := New(1, time.Minute)

	if err := l.WaitForAvailability(context.Background(), time.Second); err != nil {
		t.Fatalf("free limiter should not wait: %v", err)
	}
}

func TestLimiter_WaitForAvailability_Timeout(t *testing.T) {
	l := New(1, time.Minute)
	l.pollInterval = 5 * time.Millisecond
	l.Record()

	err := l.WaitForAvailability(context.Background(), 30*time.Millisecond)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("err = %v, want ErrWaitTimeout", err)
	}
}

func TestLimiter_WaitForAvailability_SlotOpens(t *testing.T) {
	l := New(1, 50*time.Millisecond)
	l.pollInterval = 5 * time.Millisecond
	l.Record()

	start := time.Now()
	if err := l.WaitForAvailability(context.Background(), time.Second); err != nil {
		t.Fatalf("expected slot to open: %v", err)
	}
	if waited := time.Since(start); waited > 500*time.Millisecond {
		t.Errorf("waited %v, expected well under the timeout", waited)
	}
}

func TestLimiter_WaitForAvailability_ContextCancel(t *testing.T) {
	l := New(1, time.Minute)
	l.pollInterval = 5 * time.Millisecond
	l.Record()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := l.WaitForAvailability(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRegistry_IndependentResources(t *testing.T) {
	r := NewRegistry()
	trade := r.Register(ResourceTradeExecution, Budget{MaxRequests: 1, Window: time.Minute})
	scan := r.Register(ResourceOpportunityScan, Budget{MaxRequests: 5, Window: time.Minute})

	trade.Record()

	if trade.CanRequest() {
		t.Error("trade limiter should be exhausted")
	}
	if !scan.CanRequest() {
		t.Error("scan limiter must be unaffected by trade usage")
	}
}

func TestRegistry_DefaultResources(t *testing.T) {
	r := NewDefaultRegistry()

	for _, name := range []string{
		ResourcePricePoll,
		ResourceTradeExecution,
		ResourceFlashloanExecution,
		ResourceOpportunityScan,
	} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("default registry missing %s", name)
		}
	}

	if _, ok := r.Get("unknown"); ok {
		t.Error("unknown resource should not resolve")
	}
}
