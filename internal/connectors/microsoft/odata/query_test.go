package odata

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

func TestToQueryString_FilterSelectTop(t *testing.T) {
	spec := &domain.QuerySpec{
		Entity: "accounts",
		Filter: "Status eq 'Open'",
		Select: []string{"Name", "Id"},
		Top:    10,
	}

	got := ToQueryString(spec)

	assert.Equal(t, "$filter=Status%20eq%20'Open'&$select=Name,Id&$top=10", got)
	assert.NotContains(t, got, "$skip")
	assert.NotContains(t, got, "$orderby")
	assert.NotContains(t, got, "$expand")
	assert.NotContains(t, got, "$count")
}

func TestToQueryString_AllOptions(t *testing.T) {
	spec := &domain.QuerySpec{
		Entity:  "CustomersV3",
		Filter:  "CreditLimit gt 1000 and Name ne 'A&B'",
		Select:  []string{"CustomerAccount", "Name"},
		Expand:  []string{"PrimaryContact($select=fullname)"},
		OrderBy: "Name desc",
		Top:     25,
		Skip:    50,
		Count:   true,
	}

	assert.Equal(t,
		"$filter=CreditLimit%20gt%201000%20and%20Name%20ne%20'A%26B'"+
			"&$select=CustomerAccount,Name"+
			"&$expand=PrimaryContact($select%3Dfullname)"+
			"&$orderby=Name%20desc"+
			"&$top=25&$skip=50&$count=true",
		ToQueryString(spec))
}

func TestToQueryString_TopClamped(t *testing.T) {
	tests := []struct {
		name string
		top  int
		want string
	}{
		{"zero", 0, "$top=1"},
		{"negative", -5, "$top=1"},
		{"in range", 500, "$top=500"},
		{"max", 1000, "$top=1000"},
		{"over max", 5000, "$top=1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToQueryString(&domain.QuerySpec{Entity: "accounts", Top: tt.top})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToQueryString_DefaultTop(t *testing.T) {
	assert.Equal(t, "$top=50", ToQueryString(domain.NewQuerySpec("accounts")))
}

func TestToQueryString_FieldListsDeduplicatedInOrder(t *testing.T) {
	spec := &domain.QuerySpec{
		Entity: "accounts",
		Select: []string{" name ", "accountid", "", "name", "revenue"},
		Top:    5,
	}

	assert.Equal(t, "$select=name,accountid,revenue&$top=5", ToQueryString(spec))
}

func TestToQueryString_CrossCompanyNotAQueryOption(t *testing.T) {
	spec := &domain.QuerySpec{Entity: "CustomersV3", Top: 5, CrossCompany: true}

	assert.Equal(t, "$top=5", ToQueryString(spec))
}

func TestEscapeQueryValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a b", "a%20b"},
		{"it's", "it's"},
		{"a+b", "a%2Bb"},
		{"50%", "50%25"},
		{"x#y", "x%23y"},
		{"k=v", "k%3Dv"},
		{"contains(name,'x')", "contains(name,'x')"},
		{"createdon gt 2024-01-01T00:00:00Z", "createdon%20gt%202024-01-01T00:00:00Z"},
		{"café", "caf%C3%A9"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeQueryValue(tt.in))
		})
	}
}

func TestEntityQueryString(t *testing.T) {
	spec := &domain.QuerySpec{
		Entity: "accounts",
		Filter: "ignored eq 1",
		Select: []string{"name"},
		Expand: []string{"primarycontactid"},
		Top:    10,
	}

	assert.Equal(t, "$select=name&$expand=primarycontactid", EntityQueryString(spec))
	assert.Empty(t, EntityQueryString(&domain.QuerySpec{Entity: "accounts"}))
}

func TestEntityPath(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"guid", "00000000-0000-0000-0000-000000000001", "accounts(00000000-0000-0000-0000-000000000001)"},
		{"string", "'ACC-001'", "accounts('ACC-001')"},
		{"composite", "dataAreaId='usmf',CustomerAccount='US 001'", "accounts(dataAreaId='usmf',CustomerAccount='US%20001')"},
		{"slash", "'a/b'", "accounts('a%2Fb')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EntityPath("accounts", tt.key))
		})
	}
}
