package domain

import (
	"fmt"
	"strings"
)

// Product identifies which Dynamics 365 API shape an endpoint exposes.
type Product string

const (
	// ProductDataverse is the Dataverse Web API (.../api/data/v9.2/).
	ProductDataverse Product = "dataverse"
	// ProductFinOps is the Finance & Operations OData API (.../data/).
	ProductFinOps Product = "finops"
)

// ParseProduct resolves a product name, accepting the usual aliases.
func ParseProduct(s string) (Product, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dataverse", "crm", "ce":
		return ProductDataverse, nil
	case "finops", "fno", "fo":
		return ProductFinOps, nil
	default:
		return "", fmt.Errorf("%w: unknown product %q (use 'dataverse' or 'finops')", ErrInvalidInput, s)
	}
}

// DefaultBasePath returns the service root path for the product.
func (p Product) DefaultBasePath() string {
	if p == ProductFinOps {
		return "/data/"
	}
	return "/api/data/v9.2/"
}

// SupportsCrossCompany reports whether the product has legal-entity partitions.
func (p Product) SupportsCrossCompany() bool {
	return p == ProductFinOps
}

// AuthType identifies the OAuth2 identity provider flavour.
type AuthType string

const (
	// AuthAzureAD is Azure AD (Entra ID), used by cloud D365.
	AuthAzureAD AuthType = "azure"
	// AuthADFS is on-premise ADFS.
	AuthADFS AuthType = "adfs"
)

// ParseAuthType resolves an auth type name. Empty input means Azure AD.
func ParseAuthType(s string) (AuthType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "azure", "azuread", "azure_ad", "entra":
		return AuthAzureAD, nil
	case "adfs", "on-premise", "onpremise":
		return AuthADFS, nil
	default:
		return "", fmt.Errorf("%w: unknown auth type %q (use 'azure' or 'adfs')", ErrInvalidInput, s)
	}
}
