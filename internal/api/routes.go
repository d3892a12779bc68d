package api

import (
	"log/slog"
	"net/http"
)

// RouterConfig holds the dependencies of the HTTP surface.
type RouterConfig struct {
	Ingester Ingester
	Checker  *Checker
	Defaults ChunkDefaults
	// MCP is mounted at /mcp when set.
	MCP    http.Handler
	Logger *slog.Logger
}

// NewRouter registers every endpoint on a new ServeMux.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingest", NewIngestHandler(cfg.Ingester, cfg.Defaults, cfg.Logger))
	mux.HandleFunc("GET /health", NewHealthHandler(cfg.Checker))
	if cfg.MCP != nil {
		mux.Handle("/mcp", cfg.MCP)
	}
	mux.HandleFunc("/", NewLandingHandler())
	return mux
}
