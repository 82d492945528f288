package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/ports/driving"
	"github.com/custodia-labs/d365-odata-mcp/internal/logger"
)

// queryEntityResult is the JSON body returned by query_entity.
type queryEntityResult struct {
	Entity     string            `json:"entity"`
	Count      int               `json:"count"`
	TotalCount *int64            `json:"total_count,omitempty"`
	NextCursor string            `json:"next_cursor,omitempty"`
	Records    []json.RawMessage `json:"records"`
}

// listEntitySetsResult is the JSON body returned by list_entity_sets.
type listEntitySetsResult struct {
	Count      int                 `json:"count"`
	EntitySets []driving.EntitySet `json:"entity_sets"`
}

func (s *Server) handleQueryEntity(
	ctx context.Context, _ *mcp.CallToolRequest, in QueryEntityInput,
) (*mcp.CallToolResult, any, error) {
	logger.Info("d365-mcp: %s entity=%s", ToolQueryEntity, in.Entity)

	spec := domain.NewQuerySpec(in.Entity)
	spec.Filter = in.Filter
	spec.Select = in.Select
	spec.OrderBy = in.OrderBy
	spec.Expand = in.Expand
	spec.Skip = in.Skip
	spec.CrossCompany = in.CrossCompany
	spec.Count = in.Count
	if in.Top != nil {
		spec.Top = *in.Top
	}

	page, err := s.service.Query(ctx, spec, in.Cursor)
	if err != nil {
		return errorResult(ToolQueryEntity, err), nil, nil
	}

	records := page.Records
	if records == nil {
		records = []json.RawMessage{}
	}
	return jsonResult(queryEntityResult{
		Entity:     spec.Entity,
		Count:      len(records),
		TotalCount: page.TotalCount,
		NextCursor: page.NextCursor,
		Records:    records,
	}), nil, nil
}

func (s *Server) handleGetEntity(
	ctx context.Context, _ *mcp.CallToolRequest, in GetEntityInput,
) (*mcp.CallToolResult, any, error) {
	logger.Info("d365-mcp: %s entity=%s", ToolGetEntity, in.Entity)

	spec := &domain.QuerySpec{
		Entity:       in.Entity,
		Select:       in.Select,
		Expand:       in.Expand,
		CrossCompany: in.CrossCompany,
	}
	record, err := s.service.Get(ctx, spec, in.Key)
	if err != nil {
		return errorResult(ToolGetEntity, err), nil, nil
	}
	return textResult(string(record)), nil, nil
}

func (s *Server) handleListEntitySets(
	ctx context.Context, _ *mcp.CallToolRequest, in ListEntitySetsInput,
) (*mcp.CallToolResult, any, error) {
	logger.Info("d365-mcp: %s contains=%q", ToolListEntitySets, in.Contains)

	sets, err := s.service.ListEntitySets(ctx, in.Contains)
	if err != nil {
		return errorResult(ToolListEntitySets, err), nil, nil
	}
	if sets == nil {
		sets = []driving.EntitySet{}
	}
	return jsonResult(listEntitySetsResult{Count: len(sets), EntitySets: sets}), nil, nil
}

func (s *Server) handleGetMetadata(
	ctx context.Context, _ *mcp.CallToolRequest, in GetMetadataInput,
) (*mcp.CallToolResult, any, error) {
	logger.Info("d365-mcp: %s", ToolGetMetadata)

	doc, err := s.service.Metadata(ctx, in.MaxBytes)
	if err != nil {
		return errorResult(ToolGetMetadata, err), nil, nil
	}
	text := doc.Document
	if doc.Truncated {
		text += fmt.Sprintf("\n<!-- truncated after %d bytes; request a larger max_bytes or query specific entities -->", len(doc.Document))
	}
	return textResult(text), nil, nil
}

func (s *Server) handleGetEnvironmentInfo(
	_ context.Context, _ *mcp.CallToolRequest, _ GetEnvironmentInfoInput,
) (*mcp.CallToolResult, any, error) {
	return jsonResult(s.service.Environment()), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Error: encode result: " + err.Error()}},
			IsError: true,
		}
	}
	return textResult(string(data))
}

// errorResult reports err to the assistant as a tool error rather than a
// protocol error, so it can correct its arguments and try again.
func errorResult(tool string, err error) *mcp.CallToolResult {
	logger.Warn("d365-mcp: %s failed: %v", tool, err)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: describeError(err)}},
		IsError: true,
	}
}

func describeError(err error) string {
	var authErr *domain.AuthError
	var queryErr *domain.QueryError

	switch {
	case errors.As(err, &authErr):
		return "Authentication failed: " + authErr.Error()
	case errors.Is(err, domain.ErrCrossCompanyUnsupported):
		return "Invalid arguments: " + err.Error() + "; omit cross_company for Dataverse"
	case errors.Is(err, domain.ErrInvalidInput):
		return "Invalid arguments: " + err.Error()
	case errors.As(err, &queryErr):
		switch queryErr.Kind {
		case domain.QueryRejected:
			msg := "D365 rejected the request: " + queryErr.Error()
			if queryErr.Message == "" && queryErr.Body != "" {
				msg += "\n" + strings.TrimSpace(queryErr.Body)
			}
			return msg
		case domain.QueryExhausted:
			return "D365 is unavailable: " + queryErr.Error()
		default:
			return "Unexpected response from D365: " + queryErr.Error()
		}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "Request cancelled: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}
