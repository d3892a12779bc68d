package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/ingestion-service/internal/api"
	"github.com/bull/ingestion-service/internal/ingest"
)

// makeIngestHandler creates the ingest_documents tool handler.
// Omitted chunking parameters take the configured defaults.
func makeIngestHandler(ingester api.Ingester, defaults api.ChunkDefaults) func(
	context.Context, *mcp.CallToolRequest, IngestDocumentsInput,
) (*mcp.CallToolResult, IngestDocumentsOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input IngestDocumentsInput) (
		*mcp.CallToolResult, IngestDocumentsOutput, error,
	) {
		req := ingest.Request{
			TenantID:  input.TenantID,
			Documents: input.Documents,
		}
		req.ChunkSize, req.Overlap = defaults.Resolve(input.ChunkSize, input.Overlap)

		result, err := ingester.Ingest(ctx, req)
		if err != nil {
			return nil, IngestDocumentsOutput{}, errors.New(api.FailureDetail(err))
		}

		return nil, IngestDocumentsOutput{
			TenantID:           result.TenantID,
			UpsertedEmbeddings: result.UpsertedEmbeddings,
			Documents:          result.Documents,
			Degraded:           result.Degraded,
		}, nil
	}
}

// makeStatusHandler creates the get_status tool handler.
func makeStatusHandler(checker *api.Checker) func(
	context.Context, *mcp.CallToolRequest, GetStatusInput,
) (*mcp.CallToolResult, GetStatusOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ GetStatusInput) (
		*mcp.CallToolResult, GetStatusOutput, error,
	) {
		h := checker.Check(ctx)
		return nil, GetStatusOutput{
			Status:        h.Status,
			ModelProvider: h.ModelProvider,
			LocalService:  h.LocalService,
			Store:         h.Store,
			Timestamp:     h.Timestamp,
		}, nil
	}
}
