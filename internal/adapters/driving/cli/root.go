package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/d365-odata-mcp/internal/adapters/driving/mcpserver"
	"github.com/custodia-labs/d365-odata-mcp/internal/config"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/ports/driven"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/ports/driving"
	"github.com/custodia-labs/d365-odata-mcp/internal/logger"
)

var (
	// Version is set by goreleaser ldflags.
	version = "dev"

	// Verbose enables debug logging.
	verbose bool

	// configPath overrides the TOML configuration file.
	configPath string

	// builder wires services from configuration. Injected by main.
	builder Builder

	// Services built for the running command.
	cfg          *config.Config
	queryService driving.QueryService
	tokens       driven.TokenProvider
	mcpServer    *mcpserver.Server
)

// Services holds the implementations CLI commands run against.
type Services struct {
	Query  driving.QueryService
	Tokens driven.TokenProvider
	Server *mcpserver.Server
}

// Builder constructs Services from validated configuration.
type Builder func(cfg *config.Config) (*Services, error)

// SetBuilder injects the service constructor used by commands that talk to D365.
func SetBuilder(b Builder) {
	builder = b
}

// SetServices injects service implementations directly, bypassing config loading.
func SetServices(s *Services) {
	if s == nil {
		return
	}
	queryService = s.Query
	tokens = s.Tokens
	mcpServer = s.Server
}

// rootCmd is the base command. Without a subcommand it serves MCP over stdio.
var rootCmd = &cobra.Command{
	Use:   "d365-odata-mcp",
	Short: "MCP server for Dynamics 365 OData",
	Long: `d365-odata-mcp exposes read-only Dynamics 365 data to AI assistants over the
Model Context Protocol. It speaks OData v4 to Dataverse (CE/CRM) and
Finance & Operations using an OAuth2 client credentials identity.

Configuration is read from environment variables, an optional .env file and
config/default.toml (or the file named by --config / D365_CONFIG).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose debug output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML configuration file")

	// Use PersistentPreRunE to set verbose mode before any command executes
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return nil
	}
}

// loadServices resolves configuration and builds services unless they were
// injected already.
func loadServices() error {
	if queryService != nil {
		return nil
	}
	if builder == nil {
		return errors.New("services not configured")
	}

	loaded, err := config.Load(config.LoadOptions{Path: configPath})
	if err != nil {
		return err
	}
	logger.SetLevel(loaded.LogLevel)
	logger.SetVerbose(verbose)
	if loaded.Source != "" {
		logger.Debug("d365-cli: configuration read from %s", loaded.Source)
	}
	logger.Debug("d365-cli: %s", loaded)

	services, err := builder(loaded)
	if err != nil {
		return err
	}
	cfg = loaded
	SetServices(services)
	return nil
}
