package microsoft

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

func TestNewRateLimiter(t *testing.T) {
	tests := []struct {
		name    string
		product domain.Product
	}{
		{name: "dataverse", product: domain.ProductDataverse},
		{name: "finops", product: domain.ProductFinOps},
		{name: "unknown product", product: domain.Product("unknown")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.product)
			require.NotNil(t, rl)
			assert.NotNil(t, rl.limiter)
		})
	}
}

func TestNewRateLimiterWithConfig(t *testing.T) {
	rl := NewRateLimiterWithConfig(RateLimitConfig{RequestsPerSecond: 5.0, BurstSize: 10})

	require.NotNil(t, rl)
	assert.NotNil(t, rl.limiter)
}

func TestRateLimiter_Wait(t *testing.T) {
	rl := NewRateLimiter(domain.ProductDataverse)

	err := rl.Wait(context.Background())

	assert.NoError(t, err)
}

func TestRateLimiter_Wait_ContextCancelled(t *testing.T) {
	rl := NewRateLimiter(domain.ProductDataverse)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rl.Wait(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiter_Wait_ContextCancelledDuringBackoff(t *testing.T) {
	rl := NewRateLimiter(domain.ProductFinOps)
	rl.RecordRateLimitError(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_Wait_WithinBurst(t *testing.T) {
	rl := NewRateLimiterWithConfig(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 5})

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		assert.NoError(t, rl.Wait(ctx), "request %d should not block", i)
		cancel()
	}
}

func TestRateLimiter_RecordRateLimitError(t *testing.T) {
	rl := NewRateLimiterWithConfig(RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10})

	rl.RecordRateLimitError(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.DeadlineExceeded)

	time.Sleep(300 * time.Millisecond)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	assert.NoError(t, rl.Wait(ctx2))
}

func TestRateLimiter_RecordRateLimitError_DefaultBackoff(t *testing.T) {
	rl := NewRateLimiter(domain.ProductDataverse)

	rl.RecordRateLimitError(0)

	rl.mu.Lock()
	retryAt := rl.retryAt
	rl.mu.Unlock()

	assert.WithinDuration(t, time.Now().Add(60*time.Second), retryAt, 2*time.Second)
}

func TestRateLimiter_RecordRateLimitError_KeepsLongerBackoff(t *testing.T) {
	rl := NewRateLimiter(domain.ProductDataverse)

	rl.RecordRateLimitError(30 * time.Second)
	rl.RecordRateLimitError(time.Second)

	rl.mu.Lock()
	retryAt := rl.retryAt
	rl.mu.Unlock()

	assert.WithinDuration(t, time.Now().Add(30*time.Second), retryAt, 2*time.Second)
}

func TestDefaultRateLimits(t *testing.T) {
	for _, product := range []domain.Product{domain.ProductDataverse, domain.ProductFinOps} {
		cfg, ok := DefaultRateLimits[product]
		assert.True(t, ok, "missing rate limit config for %s", product)
		assert.Greater(t, cfg.RequestsPerSecond, 0.0)
		assert.Greater(t, cfg.BurstSize, 0)
	}
}
