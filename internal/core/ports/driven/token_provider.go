package driven

import (
	"context"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

// TokenProvider provides bearer tokens for D365 data requests.
// Implementations cache tokens and refresh them transparently.
type TokenProvider interface {
	// GetToken returns a token that is valid at hand-out time.
	// Failures are returned as *domain.AuthError.
	GetToken(ctx context.Context) (*domain.Token, error)

	// Invalidate drops the cached token so the next GetToken acquires a new one.
	Invalidate()
}

// TokenAcquirer performs one OAuth2 token request against an identity provider.
// It does no caching.
type TokenAcquirer interface {
	Acquire(ctx context.Context) (*domain.Token, error)

	// AuthType identifies the identity provider flavour.
	AuthType() domain.AuthType
}
