package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"

	"github.com/hanehara/tsugite/internal/core/port"
	"github.com/hanehara/tsugite/internal/core/service"
)

// NewServer creates an MCPServer with tools and logging hooks.
func NewServer(version string, ask *service.AskService, explorer port.SchemaExplorer, logger *slog.Logger, tracer trace.Tracer) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithHooks(ToolCallHooks(logger, tracer)),
	)

	RegisterTools(s, ask, explorer)

	return s
}
