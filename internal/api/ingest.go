// Package api serves the ingestion service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bull/ingestion-service/internal/ingest"
)

const maxRequestBytes = 32 << 20

// Ingester runs one ingestion request.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

// IngestRequest is the JSON body of POST /ingest.
// botId is accepted as an alias of tenantId.
type IngestRequest struct {
	TenantID  string            `json:"tenantId"`
	BotID     string            `json:"botId,omitempty"`
	Documents []ingest.Document `json:"documents"`
	ChunkSize *int              `json:"chunkSize,omitempty"`
	Overlap   *int              `json:"overlap,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ChunkDefaults fill in chunkSize and overlap when a request omits them.
type ChunkDefaults struct {
	Size    int
	Overlap int
}

// Resolve returns the chunking for a request. Only nil values take the
// default; explicit values, zero included, are passed on for validation.
func (d ChunkDefaults) Resolve(size, overlap *int) (int, int) {
	s, o := d.Size, d.Overlap
	if size != nil {
		s = *size
	}
	if overlap != nil {
		o = *overlap
	}
	return s, o
}

// ToRequest resolves the tenant alias and chunking defaults.
func (r IngestRequest) ToRequest(defaults ChunkDefaults) ingest.Request {
	req := ingest.Request{
		TenantID:  r.TenantID,
		Documents: r.Documents,
	}
	if req.TenantID == "" {
		req.TenantID = r.BotID
	}
	req.ChunkSize, req.Overlap = defaults.Resolve(r.ChunkSize, r.Overlap)
	return req
}

// FailureDetail renders an ingestion error the way clients see it.
func FailureDetail(err error) string {
	var ie *ingest.Error
	if errors.As(err, &ie) {
		return fmt.Sprintf("Ingestion failed: %v", ie.Err)
	}
	return fmt.Sprintf("Ingestion failed: %v", err)
}

// NewIngestHandler creates the POST /ingest handler.
func NewIngestHandler(ingester Ingester, defaults ChunkDefaults, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

		var body IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: fmt.Sprintf("invalid request body: %v", err)})
			return
		}

		result, err := ingester.Ingest(r.Context(), body.ToRequest(defaults))
		if err != nil {
			logger.Error("Ingestion failed", "tenant", body.TenantID, "error", err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: FailureDetail(err)})
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
