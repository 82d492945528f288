package driving

import "github.com/custodia-labs/d365-odata-mcp/internal/core/domain"

// EntityCatalog provides the entity sets declared in configuration.
type EntityCatalog interface {
	// List returns all declared entity sets in declaration order.
	List() []domain.EntityDefinition

	// Get returns a declared entity set by name, case-insensitively.
	// Returns ErrNotFound if the entity set is not declared.
	Get(name string) (*domain.EntityDefinition, error)

	// ApplyDefaults fills unset query fields from the entity's declaration.
	ApplyDefaults(spec *domain.QuerySpec)
}
