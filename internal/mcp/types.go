// Package mcp exposes document ingestion as Model Context Protocol tools.
package mcp

import "github.com/bull/ingestion-service/internal/ingest"

// IngestDocumentsInput defines the input parameters for the ingest_documents tool.
type IngestDocumentsInput struct {
	// TenantID selects the tenant collection the documents are stored in.
	TenantID string `json:"tenant_id" jsonschema:"the tenant whose collection receives the documents"`
	// Documents are chunked, embedded and stored in input order.
	Documents []ingest.Document `json:"documents" jsonschema:"documents to ingest, each with a filename and text"`
	// ChunkSize is the window length in characters; nil takes the default.
	ChunkSize *int `json:"chunk_size,omitempty" jsonschema:"chunk window length in characters (default 600)"`
	// Overlap is the number of characters consecutive windows share.
	Overlap *int `json:"overlap,omitempty" jsonschema:"characters shared by consecutive chunks (default 80)"`
}

// IngestDocumentsOutput reports what was stored.
type IngestDocumentsOutput struct {
	TenantID           string `json:"tenant_id"`
	UpsertedEmbeddings int    `json:"upserted_embeddings"`
	Documents          int    `json:"documents"`
	// Degraded counts chunks embedded by a fallback provider.
	Degraded int `json:"degraded"`
}

// GetStatusInput defines the input parameters for the get_status tool.
// This tool takes no parameters.
type GetStatusInput struct{}

// GetStatusOutput mirrors the HTTP health endpoint.
type GetStatusOutput struct {
	Status        string `json:"status"`
	ModelProvider string `json:"model_provider"`
	LocalService  string `json:"local_service,omitempty"`
	Store         string `json:"store"`
	Timestamp     string `json:"timestamp"`
}
