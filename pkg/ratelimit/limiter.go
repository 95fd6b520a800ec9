package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for client-side request pacing
type Limiter interface {
	// Allow takes a token if one is available
	Allow() bool
	// Wait blocks until a token is available or ctx ends
	Wait(ctx context.Context) error
	// Reset refills the limiter to capacity
	Reset()
}

// TokenBucket is a continuously refilling token bucket
type TokenBucket struct {
	capacity float64
	tokens   float64
	interval time.Duration // time to earn one token
	last     time.Time
	now      func() time.Time
	mu       sync.Mutex
}

// NewTokenBucket allows up to capacity requests in a burst and refills one
// token per interval.
func NewTokenBucket(capacity int, interval time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	tb := &TokenBucket{
		capacity: float64(capacity),
		tokens:   float64(capacity),
		interval: interval,
		now:      time.Now,
	}
	tb.last = tb.now()
	return tb
}

// PerMinute returns a limiter for rpm requests per minute, or nil when rpm is
// not positive. The burst equals one second's worth of requests.
func PerMinute(rpm int) *TokenBucket {
	if rpm <= 0 {
		return nil
	}
	burst := rpm / 60
	return NewTokenBucket(burst, time.Minute/time.Duration(rpm))
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	_, ok := tb.reserve()
	return ok
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		delay, ok := tb.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.last = tb.now()
}

// reserve takes a token, or reports how long until one is earned
func (tb *TokenBucket) reserve() (time.Duration, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	if tb.interval > 0 {
		tb.tokens += float64(now.Sub(tb.last)) / float64(tb.interval)
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
	} else {
		tb.tokens = tb.capacity
	}
	tb.last = now

	if tb.tokens >= 1 {
		tb.tokens--
		return 0, true
	}

	missing := 1 - tb.tokens
	return time.Duration(missing * float64(tb.interval)), false
}
