package odata

import (
	"context"
	"math/rand/v2"
	"time"
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 30 * time.Second
	// DefaultMaxRetryAfter bounds a server-requested wait.
	DefaultMaxRetryAfter = 2 * time.Minute
)

// RetryPolicy decides how often and how long to back off after transient failures.
// It holds no state; the executor asks it for each delay.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the exponential delay before jitter is added.
	MaxDelay time.Duration
	// MaxRetryAfter caps a Retry-After value. Zero means no cap.
	MaxRetryAfter time.Duration
	// Jitter is the exclusive upper bound of the random delay added to each backoff.
	Jitter time.Duration
	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultRetryPolicy returns 3 retries starting at 1s, capped at 30s, with up
// to a quarter of the base delay as jitter.
func DefaultRetryPolicy() RetryPolicy {
	return NewRetryPolicy(DefaultMaxRetries, DefaultBaseDelay, DefaultMaxDelay)
}

// NewRetryPolicy builds a policy with jitter of BaseDelay/4.
// Non-positive values fall back to the defaults; maxRetries may be zero.
func NewRetryPolicy(maxRetries int, base, maxDelay time.Duration) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if maxDelay < base {
		maxDelay = base
	}
	return RetryPolicy{
		MaxRetries:    maxRetries,
		BaseDelay:     base,
		MaxDelay:      maxDelay,
		MaxRetryAfter: DefaultMaxRetryAfter,
		Jitter:        base / 4,
	}
}

// Attempts returns the total number of attempts including the first.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Backoff returns the computed delay before retry n (1-based):
// BaseDelay * 2^(n-1), capped at MaxDelay, plus jitter in [0, Jitter).
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.MaxDelay
	if n <= 32 {
		if exp := p.BaseDelay << (n - 1); exp > 0 && exp < p.MaxDelay {
			d = exp
		}
	}
	return d + p.jitter()
}

// Delay returns the wait before retry n. A server-provided Retry-After wins
// over the computed backoff, bounded by MaxRetryAfter.
func (p RetryPolicy) Delay(n int, retryAfter time.Duration, hasRetryAfter bool) time.Duration {
	if hasRetryAfter {
		if p.MaxRetryAfter > 0 && retryAfter > p.MaxRetryAfter {
			return p.MaxRetryAfter
		}
		return retryAfter
	}
	return p.Backoff(n)
}

func (p RetryPolicy) jitter() time.Duration {
	if p.Jitter <= 0 {
		return 0
	}
	r := rand.Float64
	if p.Rand != nil {
		r = p.Rand
	}
	return time.Duration(r() * float64(p.Jitter))
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
