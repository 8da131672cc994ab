// Package mcp exposes the fusion engine over the Model Context Protocol,
// so MCP-compatible agents can request fusions and read analytics without
// the HTTP surface.
package mcp

import (
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/tessera-health/tessera/internal/analytics"
	"github.com/tessera-health/tessera/internal/fusion"
)

// Server wraps the MCP server with tessera's service layer.
type Server struct {
	mcpServer    *mcpserver.MCPServer
	engine       *fusion.Engine
	analyticsSvc *analytics.Service
	logger       *slog.Logger
}

// New creates and configures an MCP server with the fusion tools registered.
func New(engine *fusion.Engine, analyticsSvc *analytics.Service, version string, logger *slog.Logger) *Server {
	s := &Server{
		engine:       engine,
		analyticsSvc: analyticsSvc,
		logger:       logger,
	}
	s.mcpServer = mcpserver.NewMCPServer(
		"tessera",
		version,
		mcpserver.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}
