// Package config resolves process configuration from a .env file, an optional
// TOML file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/d365-odata-mcp/internal/connectors/microsoft"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

const (
	// DefaultConfigPath is read when present and no other file is named.
	DefaultConfigPath = "config/default.toml"

	defaultPageSize         = 500
	defaultMaxRetries       = 3
	defaultRetryDelayMS     = 1000
	defaultMaxRetryDelayMS  = 30000
	defaultRequestTimeout   = 30 * time.Second
	defaultMetadataMaxBytes = 256 << 10
	defaultLogLevel         = "info"
)

// File is the TOML configuration file layout.
type File struct {
	Global        GlobalConfig        `toml:"global"`
	Observability ObservabilityConfig `toml:"observability"`
	Entities      []EntityConfig      `toml:"entities"`
}

// GlobalConfig holds connection and request settings.
type GlobalConfig struct {
	Product            string `toml:"product"`
	Endpoint           string `toml:"endpoint"`
	AuthType           string `toml:"auth_type"`
	TokenURL           string `toml:"token_url"`
	Resource           string `toml:"resource"`
	PageSize           *int   `toml:"page_size"`
	MaxRetries         *int   `toml:"max_retries"`
	RetryDelayMS       int64  `toml:"retry_delay_ms"`
	MaxRetryDelayMS    int64  `toml:"max_retry_delay_ms"`
	RequestTimeoutSecs int    `toml:"request_timeout_secs"`
	MetadataMaxBytes   int64  `toml:"metadata_max_bytes"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string `toml:"log_level"`
	MetricsAddr string `toml:"metrics_addr"`
}

// EntityConfig declares one entity set.
type EntityConfig struct {
	Name         string   `toml:"name"`
	Description  string   `toml:"description"`
	CrossCompany bool     `toml:"cross_company"`
	Select       []string `toml:"select"`
}

// Config is the validated runtime configuration.
type Config struct {
	Auth domain.AuthConfig

	// PageSize is sent as odata.maxpagesize; zero leaves it to the server.
	PageSize         int
	MaxRetries       int
	RetryDelay       time.Duration
	MaxRetryDelay    time.Duration
	RequestTimeout   time.Duration
	MetadataMaxBytes int64

	LogLevel    string
	MetricsAddr string

	Entities []domain.EntityDefinition

	// Source is the TOML file that was read, empty when none.
	Source string
}

// String describes the configuration without secrets.
func (c *Config) String() string {
	return fmt.Sprintf("Config(%s, page_size=%d, max_retries=%d, retry_delay=%s, entities=%d)",
		c.Auth, c.PageSize, c.MaxRetries, c.RetryDelay, len(c.Entities))
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// Path names a TOML file that must exist. When empty, D365_CONFIG and then
	// DefaultConfigPath are tried, and a missing file is not an error.
	Path string
	// SkipDotEnv disables reading .env from the working directory.
	SkipDotEnv bool
}

// Load reads and validates configuration.
func Load(opts LoadOptions) (*Config, error) {
	if !opts.SkipDotEnv {
		if err := godotenv.Load(); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("load .env: %w", err)
			}
		}
	}

	file, source, err := readFile(opts.Path)
	if err != nil {
		return nil, err
	}

	cfg, err := resolve(file)
	if err != nil {
		return nil, err
	}
	cfg.Source = source
	return cfg, nil
}

// readFile returns the parsed TOML file, or an empty File when none applies.
func readFile(path string) (*File, string, error) {
	required := path != ""
	if path == "" {
		path = os.Getenv("D365_CONFIG")
		required = path != ""
	}
	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return &File{}, "", nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", path, err)
	}

	var file File
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, "", fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &file, path, nil
}

// resolve merges file with environment overrides and validates the result.
func resolve(file *File) (*Config, error) {
	g := file.Global

	productName := getenvDefault("PRODUCT", g.Product)
	endpoint := getenvDefault("ENDPOINT", g.Endpoint)
	auth := domain.AuthConfig{
		TenantID:     strings.TrimSpace(os.Getenv("TENANT_ID")),
		ClientID:     strings.TrimSpace(os.Getenv("CLIENT_ID")),
		ClientSecret: os.Getenv("CLIENT_SECRET"),
		TokenURL:     strings.TrimSpace(getenvDefault("TOKEN_URL", g.TokenURL)),
		Resource:     strings.TrimSpace(getenvDefault("RESOURCE", g.Resource)),
	}

	authType, err := domain.ParseAuthType(getenvDefault("AUTH_TYPE", g.AuthType))
	if err != nil {
		return nil, err
	}
	auth.AuthType = authType

	var missing []string
	if auth.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if auth.ClientSecret == "" {
		missing = append(missing, "CLIENT_SECRET")
	}
	if auth.TenantID == "" && (authType == domain.AuthAzureAD || auth.TokenURL == "") {
		missing = append(missing, "TENANT_ID")
	}
	if strings.TrimSpace(endpoint) == "" {
		missing = append(missing, "ENDPOINT")
	}
	if strings.TrimSpace(productName) == "" {
		missing = append(missing, "PRODUCT")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrNotConfigured, strings.Join(missing, ", "))
	}

	product, err := domain.ParseProduct(productName)
	if err != nil {
		return nil, err
	}
	auth.Product = product

	auth.Endpoint, err = microsoft.NormaliseEndpoint(endpoint, product)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Auth:             auth,
		PageSize:         defaultPageSize,
		MaxRetries:       defaultMaxRetries,
		RetryDelay:       durationMS(g.RetryDelayMS, defaultRetryDelayMS),
		MaxRetryDelay:    durationMS(g.MaxRetryDelayMS, defaultMaxRetryDelayMS),
		RequestTimeout:   defaultRequestTimeout,
		MetadataMaxBytes: defaultMetadataMaxBytes,
		LogLevel:         getenvDefault("LOG_LEVEL", file.Observability.LogLevel),
		MetricsAddr:      getenvDefault("METRICS_ADDR", file.Observability.MetricsAddr),
	}
	if g.PageSize != nil && *g.PageSize >= 0 {
		cfg.PageSize = *g.PageSize
	}
	if g.MaxRetries != nil && *g.MaxRetries >= 0 {
		cfg.MaxRetries = *g.MaxRetries
	}
	if g.RequestTimeoutSecs > 0 {
		cfg.RequestTimeout = time.Duration(g.RequestTimeoutSecs) * time.Second
	}
	if g.MetadataMaxBytes > 0 {
		cfg.MetadataMaxBytes = g.MetadataMaxBytes
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	cfg.PageSize = getenvIntDefault("PAGE_SIZE", cfg.PageSize)
	cfg.MaxRetries = getenvIntDefault("MAX_RETRIES", cfg.MaxRetries)
	if ms := getenvIntDefault("RETRY_DELAY_MS", 0); ms > 0 {
		cfg.RetryDelay = time.Duration(ms) * time.Millisecond
	}
	if ms := getenvIntDefault("MAX_RETRY_DELAY_MS", 0); ms > 0 {
		cfg.MaxRetryDelay = time.Duration(ms) * time.Millisecond
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = cfg.RetryDelay
	}

	for _, e := range file.Entities {
		def := domain.EntityDefinition{
			Name:          strings.TrimSpace(e.Name),
			Description:   strings.TrimSpace(e.Description),
			CrossCompany:  e.CrossCompany,
			DefaultSelect: e.Select,
		}
		if err := def.Validate(product); err != nil {
			return nil, fmt.Errorf("entity %q: %w", e.Name, err)
		}
		cfg.Entities = append(cfg.Entities, def)
	}

	return cfg, nil
}

func durationMS(ms, def int64) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getenvIntDefault returns def when key is unset, unparseable or negative.
func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
