package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/ingestion-service/internal/api"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Ingester api.Ingester
	Checker  *api.Checker
	Defaults api.ChunkDefaults
	Version  string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "document-ingestion-server",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_documents",
		Description: "Chunk, embed and store documents in a tenant's vector collection. Re-ingesting a filename overwrites its chunks.",
	}, makeIngestHandler(cfg.Ingester, cfg.Defaults))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_status",
		Description: "Report collection store health, the active embedding provider and, for local providers, whether the embedding service is reachable.",
	}, makeStatusHandler(cfg.Checker))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
