// Package ratelimit paces probe requests against a target server.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces requests. A non-positive rate disables limiting.
type Limiter struct {
	mu       sync.RWMutex
	limiter  *rate.Limiter
	rate     float64
	burst    int
	waits    int64
	waitTime time.Duration
}

// NewLimiter creates a limiter allowing requestsPerSecond with the given burst.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	l := &Limiter{}
	l.SetRate(requestsPerSecond, burst)
	return l
}

// Wait blocks until a request is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.RLock()
	limiter := l.limiter
	l.mu.RUnlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	l.waits++
	l.waitTime += time.Since(start)
	l.mu.Unlock()
	return nil
}

// SetRate replaces the rate and burst.
func (l *Limiter) SetRate(requestsPerSecond float64, burst int) {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if burst < 1 {
		burst = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limiter == nil {
		l.limiter = rate.NewLimiter(limit, burst)
	} else {
		l.limiter.SetLimit(limit)
		l.limiter.SetBurst(burst)
	}
	l.rate = requestsPerSecond
	l.burst = burst
}

// Unlimited reports whether limiting is disabled.
func (l *Limiter) Unlimited() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rate <= 0
}

// Stats returns limiter statistics.
func (l *Limiter) Stats() LimiterStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return LimiterStats{
		Rate:     l.rate,
		Burst:    l.burst,
		Waits:    l.waits,
		WaitTime: l.waitTime,
	}
}

// LimiterStats contains rate limiter statistics.
type LimiterStats struct {
	Rate     float64       `json:"rate"`
	Burst    int           `json:"burst"`
	Waits    int64         `json:"waits"`
	WaitTime time.Duration `json:"wait_time"`
}
