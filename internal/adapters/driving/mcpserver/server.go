// Package mcpserver exposes the query service as Model Context Protocol tools over stdio.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/ports/driving"
	"github.com/custodia-labs/d365-odata-mcp/internal/logger"
)

// ServerName is reported to clients during initialisation.
const ServerName = "d365-odata-mcp"

// Server is the MCP tool server.
type Server struct {
	service driving.QueryService
	mcp     *mcp.Server
}

// NewServer creates a server exposing service's operations as tools.
func NewServer(service driving.QueryService, version string) *Server {
	s := &Server{
		service: service,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    ServerName,
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Info("d365-mcp: serving tools on stdio")
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves MCP over an arbitrary transport.
func (s *Server) RunTransport(ctx context.Context, t mcp.Transport) error {
	return s.mcp.Run(ctx, t)
}

// Connect starts a session over t without blocking, for in-process clients.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
