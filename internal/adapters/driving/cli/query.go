package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

var queryCmd = &cobra.Command{
	Use:   "query <entity>",
	Short: "Run one OData query and print the result",
	Long: `Run a single query against an entity set and print the records as JSON.

Examples:
  d365-odata-mcp query accounts --select name,accountnumber --top 5
  d365-odata-mcp query CustomersV3 --filter "CustomerGroupId eq '10'" --cross-company
  d365-odata-mcp query accounts --cursor <next_cursor from a previous run>`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

// Flags for query.
var (
	queryFilter       string
	querySelect       []string
	queryOrderBy      string
	queryExpand       string
	queryTop          int
	querySkip         int
	queryCrossCompany bool
	queryCount        bool
	queryCursor       string
)

func init() {
	queryCmd.Flags().StringVar(&queryFilter, "filter", "", "OData $filter expression")
	queryCmd.Flags().StringSliceVar(&querySelect, "select", nil, "fields to return (comma separated)")
	queryCmd.Flags().StringVar(&queryOrderBy, "orderby", "", "OData $orderby expression")
	queryCmd.Flags().StringVar(&queryExpand, "expand", "", "OData $expand expression")
	queryCmd.Flags().IntVar(&queryTop, "top", domain.DefaultTop, "maximum records to return (1-1000)")
	queryCmd.Flags().IntVar(&querySkip, "skip", 0, "records to skip")
	queryCmd.Flags().BoolVar(&queryCrossCompany, "cross-company", false, "query all legal entities (Finance & Operations)")
	queryCmd.Flags().BoolVar(&queryCount, "count", false, "request the total matching count")
	queryCmd.Flags().StringVar(&queryCursor, "cursor", "", "continue from a previous next_cursor")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := loadServices(); err != nil {
		return err
	}
	if queryService == nil {
		return errors.New("query service not configured")
	}

	spec := domain.NewQuerySpec(args[0])
	spec.Filter = queryFilter
	spec.Select = querySelect
	spec.OrderBy = queryOrderBy
	spec.Expand = queryExpand
	spec.Top = queryTop
	spec.Skip = querySkip
	spec.CrossCompany = queryCrossCompany
	spec.Count = queryCount

	page, err := queryService.Query(cmd.Context(), spec, queryCursor)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(page)
}
