package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/custodia-labs/d365-odata-mcp/internal/adapters/driven/auth"
	"github.com/custodia-labs/d365-odata-mcp/internal/adapters/driving/cli"
	"github.com/custodia-labs/d365-odata-mcp/internal/adapters/driving/mcpserver"
	"github.com/custodia-labs/d365-odata-mcp/internal/config"
	"github.com/custodia-labs/d365-odata-mcp/internal/connectors/microsoft"
	"github.com/custodia-labs/d365-odata-mcp/internal/connectors/microsoft/odata"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/ports/driving"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/services"
	"github.com/custodia-labs/d365-odata-mcp/internal/logger"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cli.SetVersion(version)
	cli.SetBuilder(build)

	if err := cli.Execute(); err != nil {
		return 1
	}
	return 0
}

// build wires the application from validated configuration.
func build(cfg *config.Config) (*cli.Services, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	// Token acquisition: identity provider flavour, then the shared cache
	acquirer, err := microsoft.NewAcquirer(cfg.Auth, microsoft.AcquirerOptions{HTTPClient: httpClient})
	if err != nil {
		return nil, fmt.Errorf("create token acquirer: %w", err)
	}
	tokens := auth.NewClientCredentialsProvider(acquirer)

	// OData executor with per-product throttling and retry policy
	retry := odata.NewRetryPolicy(cfg.MaxRetries, cfg.RetryDelay, cfg.MaxRetryDelay)
	executor, err := odata.NewExecutor(cfg.Auth.Endpoint, cfg.Auth.Product, odata.Options{
		HTTPClient:  httpClient,
		RateLimiter: microsoft.NewRateLimiter(cfg.Auth.Product),
		Retry:       &retry,
		PageSize:    cfg.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create odata executor: %w", err)
	}

	catalog, err := services.NewEntityCatalog(cfg.Auth.Product, cfg.Entities)
	if err != nil {
		return nil, fmt.Errorf("load entity catalog: %w", err)
	}

	querySvc := services.NewQueryService(executor, tokens, services.QueryServiceOptions{
		Catalog:       catalog,
		MetadataLimit: cfg.MetadataMaxBytes,
		Environment: driving.EnvironmentInfo{
			Product:      cfg.Auth.Product,
			Endpoint:     executor.Endpoint(),
			AuthType:     acquirer.AuthType(),
			TenantID:     cfg.Auth.TenantID,
			ClientID:     cfg.Auth.ClientID,
			MaxRetries:   retry.MaxRetries,
			RetryDelayMS: retry.BaseDelay.Milliseconds(),
			PageSize:     cfg.PageSize,
			Version:      version,
		},
	})

	logger.Info("d365-cli: %s endpoint %s (%d declared entities)",
		cfg.Auth.Product, executor.Endpoint(), len(cfg.Entities))

	return &cli.Services{
		Query:  querySvc,
		Tokens: tokens,
		Server: mcpserver.NewServer(querySvc, version),
	}, nil
}
