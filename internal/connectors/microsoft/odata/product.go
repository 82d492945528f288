package odata

import (
	"fmt"
	"net/http"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

// CrossCompanyHeader marks an F&O request as spanning all legal entities.
const CrossCompanyHeader = "Cross-Company"

// crossCompanyOption is the matching F&O URL option.
const crossCompanyOption = "cross-company=true"

// Shape captures how one D365 product lays out URLs and headers.
// It is chosen once from the configured product.
type Shape interface {
	Product() domain.Product

	// Check rejects specs the product cannot serve.
	Check(spec *domain.QuerySpec) error

	// CollectionURL returns the URL for the first page of a collection query.
	CollectionURL(endpoint string, spec *domain.QuerySpec) string

	// EntityURL returns the URL for a single record.
	EntityURL(endpoint string, spec *domain.QuerySpec, key string) string

	// ApplyHeaders adds product-specific request headers.
	ApplyHeaders(h http.Header, spec *domain.QuerySpec)
}

// ShapeFor returns the Shape for product.
func ShapeFor(product domain.Product) (Shape, error) {
	switch product {
	case domain.ProductDataverse:
		return dataverseShape{}, nil
	case domain.ProductFinOps:
		return finOpsShape{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown product %q", domain.ErrInvalidInput, product)
	}
}

// dataverseShape serves the Dataverse Web API (/api/data/v9.2/).
type dataverseShape struct{}

func (dataverseShape) Product() domain.Product { return domain.ProductDataverse }

func (dataverseShape) Check(spec *domain.QuerySpec) error {
	if spec.CrossCompany {
		return domain.ErrCrossCompanyUnsupported
	}
	return nil
}

func (dataverseShape) CollectionURL(endpoint string, spec *domain.QuerySpec) string {
	return withQuery(endpoint+spec.Entity, ToQueryString(spec))
}

func (dataverseShape) EntityURL(endpoint string, spec *domain.QuerySpec, key string) string {
	return withQuery(endpoint+EntityPath(spec.Entity, key), EntityQueryString(spec))
}

func (dataverseShape) ApplyHeaders(http.Header, *domain.QuerySpec) {}

// finOpsShape serves the Finance & Operations data entities (/data/).
type finOpsShape struct{}

func (finOpsShape) Product() domain.Product { return domain.ProductFinOps }

func (finOpsShape) Check(*domain.QuerySpec) error { return nil }

func (finOpsShape) CollectionURL(endpoint string, spec *domain.QuerySpec) string {
	q := ToQueryString(spec)
	if spec.CrossCompany {
		q += "&" + crossCompanyOption
	}
	return withQuery(endpoint+spec.Entity, q)
}

func (finOpsShape) EntityURL(endpoint string, spec *domain.QuerySpec, key string) string {
	q := EntityQueryString(spec)
	if spec.CrossCompany {
		if q != "" {
			q += "&"
		}
		q += crossCompanyOption
	}
	return withQuery(endpoint+EntityPath(spec.Entity, key), q)
}

func (finOpsShape) ApplyHeaders(h http.Header, spec *domain.QuerySpec) {
	if spec.CrossCompany {
		h.Set(CrossCompanyHeader, "true")
	}
}

func withQuery(u, q string) string {
	if q == "" {
		return u
	}
	return u + "?" + q
}
