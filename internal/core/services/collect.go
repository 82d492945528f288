package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/custodia-labs/d365-odata-mcp/internal/connectors/microsoft"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/ports/driven"
	"github.com/custodia-labs/d365-odata-mcp/internal/logger"
)

// Collect fetches pages of spec until spec.EffectiveTop() records are gathered
// or the server reports no more data. A non-empty startLink resumes from a
// previous next link.
//
// Pages are fetched one at a time in link order, each with a freshly resolved
// token. Any failure discards everything gathered so far. The returned
// NextLink is set only when the last page was taken whole and the server
// offered more.
func Collect(
	ctx context.Context,
	spec *domain.QuerySpec,
	startLink string,
	fetcher driven.PageFetcher,
	tokens driven.TokenProvider,
) (*domain.QueryResult, error) {
	top := spec.EffectiveTop()
	records := make([]json.RawMessage, 0, min(top, 256))
	var total *int64
	link := startLink

	for pageNum := 1; ; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		token, err := tokens.GetToken(ctx)
		if err != nil {
			return nil, err
		}

		page, err := fetcher.FetchPage(ctx, spec, link, token)
		if err != nil {
			invalidateOnUnauthorised(err, tokens)
			logger.Debug("d365-odata: %s page %d failed, discarding %d records", spec.Entity, pageNum, len(records))
			return nil, err
		}
		if total == nil {
			total = page.TotalCount
		}

		remaining := top - len(records)
		if page.Len() > remaining {
			records = append(records, page.Records[:remaining]...)
			logger.Debug("d365-odata: %s truncated to %d records after %d pages", spec.Entity, top, pageNum)
			return &domain.QueryResult{Records: records, TotalCount: total}, nil
		}
		records = append(records, page.Records...)

		if len(records) == top || page.NextLink == "" {
			logger.Debug("d365-odata: %s collected %d records in %d pages", spec.Entity, len(records), pageNum)
			return &domain.QueryResult{Records: records, TotalCount: total, NextLink: page.NextLink}, nil
		}
		if page.NextLink == link {
			return nil, &domain.QueryError{
				Kind:    domain.QueryDecode,
				Message: "server repeated the same next link",
			}
		}
		link = page.NextLink
	}
}

// invalidateOnUnauthorised drops the cached token after a 401 so the next call
// acquires a fresh one. The failing call is not retried.
func invalidateOnUnauthorised(err error, tokens driven.TokenProvider) {
	var qe *domain.QueryError
	if errors.As(err, &qe) && microsoft.IsUnauthorised(qe.StatusCode) {
		logger.Warn("d365-odata: data endpoint rejected the access token, invalidating cache")
		tokens.Invalidate()
	}
}
