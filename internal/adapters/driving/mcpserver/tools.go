package mcpserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolQueryEntity        = "query_entity"
	ToolGetEntity          = "get_entity"
	ToolListEntitySets     = "list_entity_sets"
	ToolGetMetadata        = "get_metadata"
	ToolGetEnvironmentInfo = "get_environment_info"
)

// QueryEntityInput is the argument shape of query_entity.
type QueryEntityInput struct {
	Entity       string   `json:"entity" jsonschema:"Entity set name, e.g. accounts (Dataverse) or CustomersV3 (Finance & Operations)"`
	Filter       string   `json:"filter,omitempty" jsonschema:"OData $filter expression, e.g. statecode eq 0"`
	Select       []string `json:"select,omitempty" jsonschema:"Fields to return"`
	OrderBy      string   `json:"orderby,omitempty" jsonschema:"OData $orderby expression, e.g. name asc"`
	Top          *int     `json:"top,omitempty" jsonschema:"Maximum records to return (default 50, clamped to 1..1000)"`
	Skip         int      `json:"skip,omitempty" jsonschema:"Records to skip"`
	Expand       []string `json:"expand,omitempty" jsonschema:"Navigation properties to expand"`
	CrossCompany bool     `json:"cross_company,omitempty" jsonschema:"Query across all legal entities (Finance & Operations only)"`
	Count        bool     `json:"count,omitempty" jsonschema:"Include the total matching record count"`
	Cursor       string   `json:"cursor,omitempty" jsonschema:"next_cursor from a previous query_entity result to continue where it stopped"`
}

// GetEntityInput is the argument shape of get_entity.
type GetEntityInput struct {
	Entity       string   `json:"entity" jsonschema:"Entity set name"`
	Key          string   `json:"key" jsonschema:"Record key as an OData key literal: a GUID, a quoted string like 'US-001', or a composite like dataAreaId='usmf',CustomerAccount='US-001'"`
	Select       []string `json:"select,omitempty" jsonschema:"Fields to return"`
	Expand       []string `json:"expand,omitempty" jsonschema:"Navigation properties to expand"`
	CrossCompany bool     `json:"cross_company,omitempty" jsonschema:"Read across legal entities (Finance & Operations only)"`
}

// ListEntitySetsInput is the argument shape of list_entity_sets.
type ListEntitySetsInput struct {
	Contains string `json:"contains,omitempty" jsonschema:"Case-insensitive substring the entity set name must contain"`
}

// GetMetadataInput is the argument shape of get_metadata.
type GetMetadataInput struct {
	MaxBytes int64 `json:"max_bytes,omitempty" jsonschema:"Maximum document size in bytes; longer documents are truncated"`
}

// GetEnvironmentInfoInput takes no arguments.
type GetEnvironmentInfoInput struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: ToolQueryEntity,
		Description: "Query records from a Dynamics 365 entity set with OData options. " +
			"Follows server paging until 'top' records are collected. " +
			"When more data exists the result includes next_cursor; pass it back as 'cursor' to continue.",
	}, s.handleQueryEntity)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolGetEntity,
		Description: "Read a single Dynamics 365 record by its key.",
	}, s.handleGetEntity)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolListEntitySets,
		Description: "List the entity sets published by the connected Dynamics 365 environment.",
	}, s.handleListEntitySets)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolGetMetadata,
		Description: "Return the OData $metadata (CSDL XML) document describing entity types and fields.",
	}, s.handleGetMetadata)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolGetEnvironmentInfo,
		Description: "Describe the connected Dynamics 365 environment: product, endpoint, auth type and retry settings.",
	}, s.handleGetEnvironmentInfo)
}
