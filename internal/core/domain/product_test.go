package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProduct(t *testing.T) {
	tests := []struct {
		in   string
		want Product
	}{
		{"dataverse", ProductDataverse},
		{"CRM", ProductDataverse},
		{" ce ", ProductDataverse},
		{"finops", ProductFinOps},
		{"FnO", ProductFinOps},
		{"fo", ProductFinOps},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProduct(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseProduct_Unknown(t *testing.T) {
	_, err := ParseProduct("business-central")

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "business-central")
}

func TestProduct_DefaultBasePath(t *testing.T) {
	assert.Equal(t, "/api/data/v9.2/", ProductDataverse.DefaultBasePath())
	assert.Equal(t, "/data/", ProductFinOps.DefaultBasePath())
}

func TestProduct_SupportsCrossCompany(t *testing.T) {
	assert.False(t, ProductDataverse.SupportsCrossCompany())
	assert.True(t, ProductFinOps.SupportsCrossCompany())
}

func TestParseAuthType(t *testing.T) {
	tests := []struct {
		in   string
		want AuthType
	}{
		{"", AuthAzureAD},
		{"azure", AuthAzureAD},
		{"AzureAD", AuthAzureAD},
		{"azure_ad", AuthAzureAD},
		{"entra", AuthAzureAD},
		{"adfs", AuthADFS},
		{"on-premise", AuthADFS},
		{"OnPremise", AuthADFS},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAuthType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseAuthType("saml")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
