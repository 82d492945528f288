package driving

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

// QueryPage is the result of one query invocation.
type QueryPage struct {
	Records []json.RawMessage `json:"records"`
	// TotalCount is @odata.count when the query asked for it.
	TotalCount *int64 `json:"total_count,omitempty"`
	// NextCursor resumes the query where this page stopped. Empty when the
	// server has no more data or the last page was cut short to honour top.
	NextCursor string `json:"next_cursor,omitempty"`
}

// EntitySet is one entry of the service's entity set listing.
type EntitySet struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Configured marks entity sets declared in configuration.
	Configured bool `json:"configured,omitempty"`
}

// MetadataDocument is the CSDL document, possibly cut short.
type MetadataDocument struct {
	Document  string
	Truncated bool
}

// EnvironmentInfo describes the connected environment. It never carries secrets.
type EnvironmentInfo struct {
	Product      domain.Product  `json:"product"`
	Endpoint     string          `json:"endpoint"`
	AuthType     domain.AuthType `json:"auth_type"`
	TenantID     string          `json:"tenant_id,omitempty"`
	ClientID     string          `json:"client_id,omitempty"`
	MaxRetries   int             `json:"max_retries"`
	RetryDelayMS int64           `json:"retry_delay_ms"`
	PageSize     int             `json:"page_size,omitempty"`
	Version      string          `json:"server_version,omitempty"`
	// DeclaredEntities lists the entity sets named in configuration.
	DeclaredEntities []EntitySet `json:"declared_entities,omitempty"`
}

// QueryService runs read-only OData operations on behalf of the tool and CLI adapters.
type QueryService interface {
	// Query collects up to spec.Top records, following next links. A non-empty
	// cursor resumes a previous query against the same entity set.
	// Results are all-or-nothing.
	Query(ctx context.Context, spec *domain.QuerySpec, cursor string) (*QueryPage, error)

	// Get reads one record by key. Only spec.Entity, Select, Expand and
	// CrossCompany are used.
	Get(ctx context.Context, spec *domain.QuerySpec, key string) (json.RawMessage, error)

	// ListEntitySets lists the published entity sets whose name contains the
	// given substring, case-insensitively. An empty filter lists all.
	ListEntitySets(ctx context.Context, contains string) ([]EntitySet, error)

	// Metadata returns the $metadata document, cut at maxBytes when positive
	// or at the service default otherwise.
	Metadata(ctx context.Context, maxBytes int64) (*MetadataDocument, error)

	// Environment describes the configured environment.
	Environment() EnvironmentInfo
}
