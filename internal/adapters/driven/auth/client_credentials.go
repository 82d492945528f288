// Package auth provides the cached, single-flight token provider used for
// every D365 data request.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/ports/driven"
	"github.com/custodia-labs/d365-odata-mcp/internal/logger"
	"github.com/custodia-labs/d365-odata-mcp/internal/metrics"
)

// Ensure ClientCredentialsProvider implements the interface.
var _ driven.TokenProvider = (*ClientCredentialsProvider)(nil)

const (
	// DefaultExpiryMargin is subtracted from the reported expiry before a cached
	// token is considered usable.
	DefaultExpiryMargin = 60 * time.Second

	defaultAcquireTimeout = 30 * time.Second

	flightKey = "token"
)

// ClientCredentialsProvider caches one token and refreshes it on demand.
// Concurrent callers that find no usable token share a single acquisition.
type ClientCredentialsProvider struct {
	acquirer driven.TokenAcquirer
	group    singleflight.Group

	mu     sync.RWMutex
	cached *domain.Token

	margin         time.Duration
	acquireTimeout time.Duration
	now            func() time.Time
}

// Option configures a ClientCredentialsProvider.
type Option func(*ClientCredentialsProvider)

// WithExpiryMargin overrides DefaultExpiryMargin.
func WithExpiryMargin(d time.Duration) Option {
	return func(p *ClientCredentialsProvider) {
		if d >= 0 {
			p.margin = d
		}
	}
}

// WithAcquireTimeout bounds each token request.
func WithAcquireTimeout(d time.Duration) Option {
	return func(p *ClientCredentialsProvider) {
		if d > 0 {
			p.acquireTimeout = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *ClientCredentialsProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewClientCredentialsProvider wraps acquirer with caching and single-flight refresh.
func NewClientCredentialsProvider(acquirer driven.TokenAcquirer, opts ...Option) *ClientCredentialsProvider {
	p := &ClientCredentialsProvider{
		acquirer:       acquirer,
		margin:         DefaultExpiryMargin,
		acquireTimeout: defaultAcquireTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetToken returns the cached token when it is still valid past the expiry
// margin, and otherwise joins or starts the single in-flight acquisition.
//
// The acquisition is detached from the first caller's cancellation so that one
// caller giving up does not fail the others waiting on it; each caller still
// stops waiting when its own ctx is done.
func (p *ClientCredentialsProvider) GetToken(ctx context.Context) (*domain.Token, error) {
	if tok := p.usable(); tok != nil {
		return tok, nil
	}

	ch := p.group.DoChan(flightKey, func() (any, error) {
		// A flight that finished just before this one started may have filled the cache.
		if tok := p.usable(); tok != nil {
			return tok, nil
		}
		return p.acquire(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		tok := *res.Val.(*domain.Token)
		return &tok, nil
	}
}

// Invalidate drops the cached token.
func (p *ClientCredentialsProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil {
		logger.Debug("d365-auth: cached token invalidated")
	}
	p.cached = nil
}

// usable returns a copy of the cached token if it is valid past the margin.
func (p *ClientCredentialsProvider) usable() *domain.Token {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.cached.ValidAt(p.now(), p.margin) {
		return nil
	}
	tok := *p.cached
	return &tok
}

func (p *ClientCredentialsProvider) acquire(ctx context.Context) (*domain.Token, error) {
	authType := p.acquirer.AuthType()

	ctx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	logger.Info("d365-auth: acquiring new %s access token", authType)
	tok, err := p.acquirer.Acquire(ctx)
	if err != nil {
		metrics.TokenAcquisitionsTotal.WithLabelValues(string(authType), "error").Inc()
		logger.Error("d365-auth: token acquisition failed: %v", err)
		var authErr *domain.AuthError
		if !errors.As(err, &authErr) {
			err = &domain.AuthError{AuthType: authType, Err: err}
		}
		return nil, err
	}
	if tok == nil || tok.AccessToken == "" {
		metrics.TokenAcquisitionsTotal.WithLabelValues(string(authType), "error").Inc()
		logger.Error("d365-auth: identity provider returned no access token")
		return nil, &domain.AuthError{AuthType: authType, Description: "identity provider returned no access token"}
	}
	metrics.TokenAcquisitionsTotal.WithLabelValues(string(authType), "success").Inc()

	now := p.now()
	if !tok.ValidAt(now, p.margin) {
		// Lifetime shorter than the margin: usable for this caller, re-acquired next time.
		logger.Warn("d365-auth: token lifetime %s is shorter than the %s expiry margin",
			tok.ExpiresAt.Sub(now).Round(time.Second), p.margin)
		if !tok.ValidAt(now, 0) {
			return nil, &domain.AuthError{AuthType: authType, Description: "identity provider returned an expired token"}
		}
	}

	p.mu.Lock()
	p.cached = tok
	p.mu.Unlock()

	logger.Info("d365-auth: token acquired, expires in %s", tok.ExpiresAt.Sub(now).Round(time.Second))
	return tok, nil
}
