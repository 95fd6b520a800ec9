package retry

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := NewExponentialBackoff(time.Second, 0)

	tests := []struct {
		n        int
		expected time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.n), "n=%d", tt.n)
	}
}

func TestExponentialBackoffCapped(t *testing.T) {
	backoff := NewExponentialBackoff(time.Second, 5*time.Second)

	assert.Equal(t, 4*time.Second, backoff.NextDelay(2))
	assert.Equal(t, 5*time.Second, backoff.NextDelay(3))
	assert.Equal(t, 5*time.Second, backoff.NextDelay(500))
}

func TestExponentialBackoffHugeExponent(t *testing.T) {
	backoff := NewExponentialBackoff(time.Second, 0)
	assert.Greater(t, backoff.NextDelay(4000), time.Duration(0))

	prev := backoff.NextDelay(0)
	for n := 1; n <= 70; n++ {
		d := backoff.NextDelay(n)
		assert.GreaterOrEqual(t, d, prev, "delay shrank at n=%d", n)
		prev = d
	}
	assert.Equal(t, time.Duration(math.MaxInt64), backoff.NextDelay(34))
	assert.Equal(t, time.Duration(math.MaxInt64), backoff.NextDelay(63))
}

func TestExponentialBackoffHugeExponentWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}
	for i := 0; i < 20; i++ {
		assert.Greater(t, backoff.NextDelay(40), time.Duration(0))
		assert.Greater(t, backoff.NextDelay(4000), time.Duration(0))
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}

	for i := 0; i < 20; i++ {
		d := backoff.NextDelay(1)
		assert.GreaterOrEqual(t, d, 180*time.Millisecond)
		assert.LessOrEqual(t, d, 220*time.Millisecond)
	}
}

func TestConstantBackoff(t *testing.T) {
	backoff := &ConstantBackoff{Delay: 250 * time.Millisecond}
	assert.Equal(t, 250*time.Millisecond, backoff.NextDelay(0))
	assert.Equal(t, 250*time.Millisecond, backoff.NextDelay(9))
}

func TestWait(t *testing.T) {
	start := time.Now()
	assert.NoError(t, Wait(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	assert.NoError(t, Wait(context.Background(), 0))
}

func TestWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Wait(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitZeroOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, 0), context.Canceled)
}
