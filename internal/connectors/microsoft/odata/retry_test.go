package odata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, 4, p.Attempts())
	assert.Equal(t, time.Second, p.BaseDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
	assert.Equal(t, 250*time.Millisecond, p.Jitter)
	assert.Equal(t, DefaultMaxRetryAfter, p.MaxRetryAfter)
}

func TestNewRetryPolicy_Fallbacks(t *testing.T) {
	p := NewRetryPolicy(-1, 0, 0)
	assert.Equal(t, DefaultMaxRetries, p.MaxRetries)
	assert.Equal(t, DefaultBaseDelay, p.BaseDelay)
	assert.Equal(t, DefaultMaxDelay, p.MaxDelay)

	p = NewRetryPolicy(0, 2*time.Second, time.Second)
	assert.Equal(t, 1, p.Attempts())
	assert.Equal(t, 2*time.Second, p.MaxDelay, "cap never below base")
}

func TestBackoff_ExponentialWithoutJitter(t *testing.T) {
	p := RetryPolicy{MaxRetries: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 800*time.Millisecond, p.Backoff(4))
	assert.Equal(t, time.Second, p.Backoff(5))
	assert.Equal(t, time.Second, p.Backoff(64))
}

func TestBackoff_JitterBounds(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 30 * time.Second, Jitter: 250 * time.Millisecond}

	p.Rand = func() float64 { return 0 }
	assert.Equal(t, 2*time.Second, p.Backoff(2))

	p.Rand = func() float64 { return 0.5 }
	assert.Equal(t, 2*time.Second+125*time.Millisecond, p.Backoff(2))

	p.Rand = nil
	for i := 0; i < 100; i++ {
		d := p.Backoff(1)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, time.Second+250*time.Millisecond)
	}
}

func TestBackoff_StrictlyIncreasingUntilCap(t *testing.T) {
	p := DefaultRetryPolicy()
	for trial := 0; trial < 50; trial++ {
		prev := time.Duration(0)
		for n := 1; n <= 5; n++ {
			d := p.Backoff(n)
			assert.Greater(t, d, prev)
			prev = d
		}
	}
}

func TestDelay_RetryAfterWins(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 7*time.Second, p.Delay(1, 7*time.Second, true))
	assert.Equal(t, time.Duration(0), p.Delay(3, 0, true))

	d := p.Delay(1, 7*time.Second, false)
	assert.GreaterOrEqual(t, d, time.Second)
	assert.Less(t, d, 2*time.Second)
}

func TestDelay_RetryAfterIsCapped(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, DefaultMaxRetryAfter, p.Delay(1, 24*time.Hour, true))
	assert.Equal(t, DefaultMaxRetryAfter, p.Delay(1, DefaultMaxRetryAfter, true))

	p.MaxRetryAfter = 0
	assert.Equal(t, 24*time.Hour, p.Delay(1, 24*time.Hour, true), "zero disables the cap")
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
