package domain

// EntityDefinition describes an entity set declared in configuration.
// Declared entities carry defaults applied to every query against them.
type EntityDefinition struct {
	// Name is the entity set name as published by the service.
	Name string
	// Description is shown to the assistant when listing entity sets.
	Description string
	// CrossCompany makes every query span all F&O legal entities.
	CrossCompany bool
	// DefaultSelect is used when a query names no fields.
	DefaultSelect []string
}

// Validate checks the definition against the configured product.
func (d EntityDefinition) Validate(product Product) error {
	if err := ValidateEntityName(d.Name); err != nil {
		return err
	}
	if d.CrossCompany && !product.SupportsCrossCompany() {
		return ErrCrossCompanyUnsupported
	}
	return nil
}
