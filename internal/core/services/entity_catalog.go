package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/ports/driving"
)

// Ensure EntityCatalog implements the interface.
var _ driving.EntityCatalog = (*EntityCatalog)(nil)

// EntityCatalog holds the entity sets declared in configuration.
type EntityCatalog struct {
	order    []string
	entities map[string]domain.EntityDefinition
}

// NewEntityCatalog validates defs against product and indexes them by
// lower-cased name. Later duplicates replace earlier ones.
func NewEntityCatalog(product domain.Product, defs []domain.EntityDefinition) (*EntityCatalog, error) {
	c := &EntityCatalog{
		entities: make(map[string]domain.EntityDefinition, len(defs)),
	}
	for _, def := range defs {
		if err := def.Validate(product); err != nil {
			return nil, fmt.Errorf("entity %q: %w", def.Name, err)
		}
		key := strings.ToLower(def.Name)
		if _, exists := c.entities[key]; !exists {
			c.order = append(c.order, key)
		}
		c.entities[key] = def
	}
	return c, nil
}

// List returns all declared entity sets in declaration order.
func (c *EntityCatalog) List() []domain.EntityDefinition {
	result := make([]domain.EntityDefinition, 0, len(c.order))
	for _, key := range c.order {
		result = append(result, c.entities[key])
	}
	return result
}

// Get returns a declared entity set by name.
func (c *EntityCatalog) Get(name string) (*domain.EntityDefinition, error) {
	def, ok := c.entities[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &def, nil
}

// ApplyDefaults fills Select and CrossCompany from the entity's declaration.
// Explicit selections are never overridden.
func (c *EntityCatalog) ApplyDefaults(spec *domain.QuerySpec) {
	def, err := c.Get(spec.Entity)
	if err != nil {
		return
	}
	if len(spec.Select) == 0 && len(def.DefaultSelect) > 0 {
		spec.Select = append([]string(nil), def.DefaultSelect...)
	}
	if def.CrossCompany {
		spec.CrossCompany = true
	}
}
