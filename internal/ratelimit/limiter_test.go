package ratelimit

import (
	"context"
	"testing"
	"time"
)

// =============================================================================
// Limiter Tests
// =============================================================================

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(10.0, 5)

	if l == nil {
		t.Fatal("NewLimiter() returned nil")
	}
	stats := l.Stats()
	if stats.Rate != 10.0 {
		t.Errorf("Rate = %v, want 10.0", stats.Rate)
	}
	if stats.Burst != 5 {
		t.Errorf("Burst = %d, want 5", stats.Burst)
	}
	if l.Unlimited() {
		t.Error("a positive rate should not be unlimited")
	}
}

// waitBriefly reports whether Wait succeeds within a short deadline.
func waitBriefly(l *Limiter) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	return l.Wait(ctx) == nil
}

func TestLimiter_Wait_Burst(t *testing.T) {
	l := NewLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !waitBriefly(l) {
			t.Errorf("Wait() should pass immediately for burst request %d", i+1)
		}
	}
	if waitBriefly(l) {
		t.Error("Wait() should not pass within the deadline after the burst is used")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(0, 0)

	if !l.Unlimited() {
		t.Error("rate 0 should be unlimited")
	}
	for i := 0; i < 100; i++ {
		if !waitBriefly(l) {
			t.Fatalf("Wait() blocked request %d on an unlimited limiter", i)
		}
	}
	if l.Stats().Burst != 1 {
		t.Errorf("Burst = %d, want minimum of 1", l.Stats().Burst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	l := NewLimiter(1000, 10)

	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if l.Stats().Waits != 3 {
		t.Errorf("Waits = %d, want 3", l.Stats().Waits)
	}
}

func TestLimiter_Wait_ContextCancelled(t *testing.T) {
	l := NewLimiter(0.1, 1)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("Wait() should fail when the context ends first")
	}
	if l.Stats().Waits != 1 {
		t.Errorf("Waits = %d, failed waits should not be counted", l.Stats().Waits)
	}
}

func TestLimiter_SetRate(t *testing.T) {
	l := NewLimiter(0.1, 1)
	waitBriefly(l)

	l.SetRate(0, 1)
	if !waitBriefly(l) {
		t.Error("Wait() should pass after switching to unlimited")
	}

	l.SetRate(5, 2)
	if got := l.Stats(); got.Rate != 5 || got.Burst != 2 {
		t.Errorf("Stats() = %+v, want rate 5 burst 2", got)
	}
}
