package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

var envKeys = []string{
	"TENANT_ID", "CLIENT_ID", "CLIENT_SECRET", "ENDPOINT", "PRODUCT", "AUTH_TYPE",
	"TOKEN_URL", "RESOURCE", "LOG_LEVEL", "METRICS_ADDR", "PAGE_SIZE", "MAX_RETRIES",
	"RETRY_DELAY_MS", "MAX_RETRY_DELAY_MS", "D365_CONFIG",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TENANT_ID", "contoso.onmicrosoft.com")
	t.Setenv("CLIENT_ID", "client-123")
	t.Setenv("CLIENT_SECRET", "s3cret")
	t.Setenv("ENDPOINT", "https://org.crm.dynamics.com")
	t.Setenv("PRODUCT", "dataverse")
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load(LoadOptions{SkipDotEnv: true})

	require.NoError(t, err)
	assert.Equal(t, domain.ProductDataverse, cfg.Auth.Product)
	assert.Equal(t, domain.AuthAzureAD, cfg.Auth.AuthType)
	assert.Equal(t, "https://org.crm.dynamics.com/api/data/v9.2/", cfg.Auth.Endpoint)
	assert.Equal(t, "s3cret", cfg.Auth.ClientSecret)
	assert.Equal(t, 500, cfg.PageSize)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(256<<10), cfg.MetadataMaxBytes)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Empty(t, cfg.Source)
}

func TestLoad_MissingRequired(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLIENT_ID", "client-123")

	_, err := Load(LoadOptions{SkipDotEnv: true})

	require.ErrorIs(t, err, domain.ErrNotConfigured)
	assert.Contains(t, err.Error(), "CLIENT_SECRET")
	assert.Contains(t, err.Error(), "TENANT_ID")
	assert.Contains(t, err.Error(), "ENDPOINT")
	assert.Contains(t, err.Error(), "PRODUCT")
	assert.NotContains(t, err.Error(), "CLIENT_ID,")
}

func TestLoad_ADFSWithTokenURLNeedsNoTenant(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("TENANT_ID", "")
	t.Setenv("AUTH_TYPE", "adfs")
	t.Setenv("TOKEN_URL", "https://adfs.contoso.com/adfs/oauth2/token")
	t.Setenv("PRODUCT", "fno")
	t.Setenv("ENDPOINT", "https://ax.contoso.com/namespaces/AXSF")

	cfg, err := Load(LoadOptions{SkipDotEnv: true})

	require.NoError(t, err)
	assert.Equal(t, domain.AuthADFS, cfg.Auth.AuthType)
	assert.Equal(t, domain.ProductFinOps, cfg.Auth.Product)
	assert.Equal(t, "https://ax.contoso.com/namespaces/AXSF/", cfg.Auth.Endpoint)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"product", "PRODUCT", "sap"},
		{"auth type", "AUTH_TYPE", "kerberos"},
		{"endpoint", "ENDPOINT", "ftp://org.crm.dynamics.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(LoadOptions{SkipDotEnv: true})

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	t.Setenv("TENANT_ID", "contoso.onmicrosoft.com")
	t.Setenv("CLIENT_ID", "client-123")
	t.Setenv("CLIENT_SECRET", "s3cret")
	path := writeFile(t, `
[global]
product = "finops"
endpoint = "https://contoso.operations.dynamics.com"
page_size = 0
max_retries = 5
retry_delay_ms = 250
max_retry_delay_ms = 4000
request_timeout_secs = 10
metadata_max_bytes = 1024

[observability]
log_level = "debug"
metrics_addr = ":9090"

[[entities]]
name = "CustomersV3"
description = "Customer master"
cross_company = true
select = ["CustomerAccount", "Name"]

[[entities]]
name = "VendorsV2"
`)

	cfg, err := Load(LoadOptions{Path: path, SkipDotEnv: true})

	require.NoError(t, err)
	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, domain.ProductFinOps, cfg.Auth.Product)
	assert.Equal(t, "https://contoso.operations.dynamics.com/data/", cfg.Auth.Endpoint)
	assert.Equal(t, 0, cfg.PageSize)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 4*time.Second, cfg.MaxRetryDelay)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(1024), cfg.MetadataMaxBytes)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	require.Len(t, cfg.Entities, 2)
	assert.Equal(t, domain.EntityDefinition{
		Name:          "CustomersV3",
		Description:   "Customer master",
		CrossCompany:  true,
		DefaultSelect: []string{"CustomerAccount", "Name"},
	}, cfg.Entities[0])
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("PAGE_SIZE", "100")
	t.Setenv("MAX_RETRIES", "0")
	t.Setenv("RETRY_DELAY_MS", "50")
	path := writeFile(t, `
[global]
product = "finops"
endpoint = "https://contoso.operations.dynamics.com"
page_size = 1000
max_retries = 5

[observability]
log_level = "debug"
`)
	t.Setenv("D365_CONFIG", path)

	cfg, err := Load(LoadOptions{SkipDotEnv: true})

	require.NoError(t, err)
	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, domain.ProductDataverse, cfg.Auth.Product)
	assert.Equal(t, "https://org.crm.dynamics.com/api/data/v9.2/", cfg.Auth.Endpoint)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryDelay)
}

func TestLoad_CrossCompanyEntityOnDataverse(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	path := writeFile(t, `
[[entities]]
name = "accounts"
cross_company = true
`)

	_, err := Load(LoadOptions{Path: path, SkipDotEnv: true})

	assert.ErrorIs(t, err, domain.ErrCrossCompanyUnsupported)
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	_, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "missing.toml"), SkipDotEnv: true})
	assert.Error(t, err, "an explicitly named file must exist")

	_, err = Load(LoadOptions{Path: writeFile(t, "[global\nproduct="), SkipDotEnv: true})
	assert.ErrorContains(t, err, "parse config file")
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"TENANT_ID=t\nCLIENT_ID=c\nCLIENT_SECRET=s\nENDPOINT=https://org.crm.dynamics.com\nPRODUCT=dataverse\n"), 0o600))
	t.Chdir(dir)
	for _, k := range []string{"TENANT_ID", "CLIENT_ID", "CLIENT_SECRET", "ENDPOINT", "PRODUCT"} {
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load(LoadOptions{})

	require.NoError(t, err)
	assert.Equal(t, "c", cfg.Auth.ClientID)
}

func TestConfig_StringOmitsSecret(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load(LoadOptions{SkipDotEnv: true})
	require.NoError(t, err)

	assert.NotContains(t, cfg.String(), "s3cret")
	assert.Contains(t, cfg.String(), "client-123")
}
