package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Limits for QuerySpec.Top.
const (
	DefaultTop = 50
	MinTop     = 1
	MaxTop     = 1000
)

var entityNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// QuerySpec is one structured OData query against an entity set.
type QuerySpec struct {
	// Entity is the entity set name, e.g. "accounts" or "CustomersV3".
	Entity  string
	Filter  string
	Select  []string
	OrderBy string
	// Top is the maximum number of records to return. Use EffectiveTop.
	Top  int
	Skip int
	// Expand lists navigation properties to expand.
	Expand []string
	// CrossCompany queries across all F&O legal entities.
	CrossCompany bool
	// Count requests @odata.count in the response.
	Count bool
}

// NewQuerySpec returns a spec for entity with the default Top.
func NewQuerySpec(entity string) *QuerySpec {
	return &QuerySpec{Entity: entity, Top: DefaultTop}
}

// ClampTop bounds n to [MinTop, MaxTop].
func ClampTop(n int) int {
	if n < MinTop {
		return MinTop
	}
	if n > MaxTop {
		return MaxTop
	}
	return n
}

// EffectiveTop returns Top clamped to the allowed range.
func (s *QuerySpec) EffectiveTop() int {
	return ClampTop(s.Top)
}

// Validate checks the invariants the query-string builder relies on.
// Filter grammar is left to the server.
func (s *QuerySpec) Validate() error {
	if err := ValidateEntityName(s.Entity); err != nil {
		return err
	}
	if s.Skip < 0 {
		return fmt.Errorf("%w: skip must be >= 0, got %d", ErrInvalidInput, s.Skip)
	}
	return nil
}

// ValidateEntityName checks that name is a usable entity set name.
func ValidateEntityName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: entity is required", ErrInvalidInput)
	}
	if !entityNamePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid entity set name %q", ErrInvalidInput, name)
	}
	return nil
}

// QueryResult is one decoded OData collection response, or the folded result
// of several pages.
type QueryResult struct {
	Records []json.RawMessage
	// TotalCount is @odata.count when requested and returned.
	TotalCount *int64
	// NextLink is @odata.nextLink, empty at end of data.
	NextLink string
}

// Len returns the number of records.
func (r *QueryResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Records)
}
