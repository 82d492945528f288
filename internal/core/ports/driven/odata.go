package driven

import (
	"context"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

// PageFetcher executes single OData requests against the configured endpoint.
type PageFetcher interface {
	// FetchPage runs spec against the entity set, or follows nextLink when it is
	// non-empty. Failures are returned as *domain.QueryError.
	FetchPage(ctx context.Context, spec *domain.QuerySpec, nextLink string, token *domain.Token) (*domain.QueryResult, error)

	// FetchEntity reads one record by key.
	FetchEntity(ctx context.Context, spec *domain.QuerySpec, key string, token *domain.Token) ([]byte, error)

	// FetchServiceDocument reads the service root listing entity sets.
	FetchServiceDocument(ctx context.Context, token *domain.Token) ([]string, error)

	// FetchMetadata reads the $metadata CSDL document, at most maxBytes long.
	FetchMetadata(ctx context.Context, token *domain.Token, maxBytes int64) (doc []byte, truncated bool, err error)
}
