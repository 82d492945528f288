package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/d365-odata-mcp/internal/connectors/microsoft/odata"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/ports/driven"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/ports/driving"
	"github.com/custodia-labs/d365-odata-mcp/internal/logger"
	"github.com/custodia-labs/d365-odata-mcp/internal/metrics"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// DefaultMetadataLimit caps the $metadata document returned to callers.
const DefaultMetadataLimit = 256 << 10

// QueryServiceOptions configures a QueryService.
type QueryServiceOptions struct {
	// Catalog supplies per-entity defaults. Optional.
	Catalog driving.EntityCatalog
	// Environment is reported by Environment().
	Environment driving.EnvironmentInfo
	// MetadataLimit defaults to DefaultMetadataLimit.
	MetadataLimit int64
}

// QueryService runs read-only OData operations with cached tokens and retries.
type QueryService struct {
	fetcher       driven.PageFetcher
	tokens        driven.TokenProvider
	catalog       driving.EntityCatalog
	env           driving.EnvironmentInfo
	metadataLimit int64
}

// NewQueryService creates a QueryService.
func NewQueryService(fetcher driven.PageFetcher, tokens driven.TokenProvider, opts QueryServiceOptions) *QueryService {
	limit := opts.MetadataLimit
	if limit <= 0 {
		limit = DefaultMetadataLimit
	}
	return &QueryService{
		fetcher:       fetcher,
		tokens:        tokens,
		catalog:       opts.Catalog,
		env:           opts.Environment,
		metadataLimit: limit,
	}
}

// Query collects up to spec.Top records.
func (s *QueryService) Query(ctx context.Context, spec *domain.QuerySpec, cursor string) (page *driving.QueryPage, err error) {
	defer observe("query", time.Now(), &err)

	if spec == nil {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	spec = s.prepare(spec)

	var startLink string
	if cursor != "" {
		c, err := odata.DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(c.Entity, spec.Entity) {
			return nil, fmt.Errorf("%w: cursor belongs to entity %q, not %q", domain.ErrInvalidInput, c.Entity, spec.Entity)
		}
		startLink = c.NextLink
		spec.CrossCompany = spec.CrossCompany || c.CrossCompany
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ctx = ensureRequestID(ctx)
	logger.Info("d365-odata: query %s top=%d resumed=%t", spec.Entity, spec.EffectiveTop(), startLink != "")

	result, err := Collect(ctx, spec, startLink, s.fetcher, s.tokens)
	if err != nil {
		return nil, err
	}

	page = &driving.QueryPage{
		Records:    result.Records,
		TotalCount: result.TotalCount,
	}
	if result.NextLink != "" {
		page.NextCursor = odata.NewCursor(spec.Entity, result.NextLink, spec.CrossCompany).Encode()
	}
	return page, nil
}

// Get reads one record by key.
func (s *QueryService) Get(ctx context.Context, spec *domain.QuerySpec, key string) (record json.RawMessage, err error) {
	defer observe("get", time.Now(), &err)

	if spec == nil {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	spec = s.prepare(spec)
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ctx = ensureRequestID(ctx)
	token, err := s.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	body, err := s.fetcher.FetchEntity(ctx, spec, key, token)
	if err != nil {
		invalidateOnUnauthorised(err, s.tokens)
		return nil, err
	}
	return body, nil
}

// ListEntitySets lists published entity sets, annotated with configured descriptions.
func (s *QueryService) ListEntitySets(ctx context.Context, contains string) (sets []driving.EntitySet, err error) {
	defer observe("list_entity_sets", time.Now(), &err)

	ctx = ensureRequestID(ctx)
	token, err := s.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	names, err := s.fetcher.FetchServiceDocument(ctx, token)
	if err != nil {
		invalidateOnUnauthorised(err, s.tokens)
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(contains))
	sets = make([]driving.EntitySet, 0, len(names))
	for _, name := range names {
		if needle != "" && !strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		set := driving.EntitySet{Name: name}
		if s.catalog != nil {
			if def, err := s.catalog.Get(name); err == nil {
				set.Description = def.Description
				set.Configured = true
			}
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// Metadata returns the $metadata document.
func (s *QueryService) Metadata(ctx context.Context, maxBytes int64) (doc *driving.MetadataDocument, err error) {
	defer observe("metadata", time.Now(), &err)

	if maxBytes <= 0 || maxBytes > s.metadataLimit {
		maxBytes = s.metadataLimit
	}

	ctx = ensureRequestID(ctx)
	token, err := s.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	body, truncated, err := s.fetcher.FetchMetadata(ctx, token, maxBytes)
	if err != nil {
		invalidateOnUnauthorised(err, s.tokens)
		return nil, err
	}
	if truncated {
		logger.Debug("d365-odata: $metadata cut at %d bytes", maxBytes)
	}
	return &driving.MetadataDocument{Document: string(body), Truncated: truncated}, nil
}

// Environment describes the configured environment, including the entity
// sets declared in configuration.
func (s *QueryService) Environment() driving.EnvironmentInfo {
	env := s.env
	if s.catalog != nil {
		for _, def := range s.catalog.List() {
			env.DeclaredEntities = append(env.DeclaredEntities, driving.EntitySet{
				Name:        def.Name,
				Description: def.Description,
				Configured:  true,
			})
		}
	}
	return env
}

// prepare copies spec and applies catalog defaults so the caller's value is
// never mutated.
func (s *QueryService) prepare(spec *domain.QuerySpec) *domain.QuerySpec {
	cp := *spec
	cp.Entity = strings.TrimSpace(cp.Entity)
	if s.catalog != nil {
		s.catalog.ApplyDefaults(&cp)
	}
	return &cp
}

func ensureRequestID(ctx context.Context) context.Context {
	if _, ok := odata.RequestIDFrom(ctx); ok {
		return ctx
	}
	ctx, _ = odata.NewRequestContext(ctx)
	return ctx
}

func observe(operation string, start time.Time, err *error) {
	status := "success"
	if *err != nil {
		status = "error"
	}
	metrics.QueryDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
