package microsoft

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

// RateLimitConfig holds rate limiting configuration for a product.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultRateLimits provides conservative defaults for each product.
// Dataverse allows 6,000 requests per 5 minutes per user (20/sec).
var DefaultRateLimits = map[domain.Product]RateLimitConfig{
	domain.ProductDataverse: {RequestsPerSecond: 15.0, BurstSize: 20},
	domain.ProductFinOps:    {RequestsPerSecond: 10.0, BurstSize: 15},
}

// defaultThrottleBackoff applies when a 429 carries no usable delay.
const defaultThrottleBackoff = 60 * time.Second

// RateLimiter provides rate limiting for D365 data requests.
// It uses a token bucket algorithm plus a shared backoff window set by 429 responses,
// so one throttled request holds back every concurrent caller.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	product domain.Product
}

// NewRateLimiter creates a new rate limiter for the specified product.
func NewRateLimiter(product domain.Product) *RateLimiter {
	cfg, ok := DefaultRateLimits[product]
	if !ok {
		cfg = RateLimitConfig{RequestsPerSecond: 10.0, BurstSize: 15}
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		product: product,
	}
}

// NewRateLimiterWithConfig creates a rate limiter with custom configuration.
func NewRateLimiterWithConfig(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimitError.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		timer := time.NewTimer(time.Until(retryAt))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimitError records a 429 and sets a backoff period for all callers.
// A non-positive delay falls back to 60 seconds. An earlier deadline never
// shortens a backoff already in force.
func (r *RateLimiter) RecordRateLimitError(delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if delay <= 0 {
		delay = defaultThrottleBackoff
	}

	at := time.Now().Add(delay)
	if at.After(r.retryAt) {
		r.retryAt = at
	}
}
