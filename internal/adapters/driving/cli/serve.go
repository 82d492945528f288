package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/d365-odata-mcp/internal/logger"
	"github.com/custodia-labs/d365-odata-mcp/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP tools over stdio",
	Long: `Serve the D365 query tools over the MCP stdio transport.

This is what an MCP client (Claude Desktop, an IDE, etc.) launches. Stdout is
reserved for protocol messages; logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := loadServices(); err != nil {
		return err
	}
	if mcpServer == nil {
		return errors.New("mcp server not configured")
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		logger.Warn("d365-cli: stdin is a terminal; this server expects an MCP client on stdio")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg != nil {
		if _, errCh := metrics.StartServer(ctx, cfg.MetricsAddr); errCh != nil {
			go func() {
				if err, ok := <-errCh; ok && err != nil {
					logger.Error("d365-metrics: %v", err)
				}
			}()
		}
	}

	logger.Info("d365-cli: serving MCP on stdio (version %s)", version)
	err := mcpServer.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("d365-cli: shut down")
	return nil
}
