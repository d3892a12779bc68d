// Package ingest turns a tenant's documents into stored chunk embeddings.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bull/ingestion-service/internal/chunker"
	"github.com/bull/ingestion-service/internal/embedding"
	"github.com/bull/ingestion-service/internal/identity"
	"github.com/bull/ingestion-service/internal/observability"
	"github.com/bull/ingestion-service/internal/storage"
)

// Document is one named text to ingest.
type Document struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// Request is a single ingestion call for one tenant.
// ChunkSize and Overlap are used as given; callers fill in defaults.
type Request struct {
	TenantID  string
	Documents []Document
	ChunkSize int
	Overlap   int
}

// Result contains statistics about an ingestion request.
type Result struct {
	TenantID           string `json:"tenantId"`
	UpsertedEmbeddings int    `json:"upsertedEmbeddings"`
	Documents          int    `json:"documents"`

	// Degraded counts chunks embedded by a provider other than the primary one.
	Degraded int           `json:"-"`
	Duration time.Duration `json:"-"`
}

// Embedder resolves embeddings for a batch of texts. It never fails.
type Embedder interface {
	Embed(ctx context.Context, texts []string) embedding.Resolution
	Active() string
}

// Collections resolves a tenant's collection, creating it on first use.
type Collections interface {
	GetOrCreate(ctx context.Context, tenantID string) (*storage.Collection, error)
}

// Writer persists a prepared batch.
type Writer interface {
	Upsert(ctx context.Context, collection *storage.Collection, records []storage.Record) error
}

// Pipeline orchestrates chunking, identity, embedding and storage for a request.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	embedder    Embedder
	collections Collections
	writer      Writer
	logger      *slog.Logger
}

// NewPipeline creates a new ingestion pipeline with the given components.
func NewPipeline(embedder Embedder, collections Collections, writer Writer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder:    embedder,
		collections: collections,
		writer:      writer,
		logger:      logger,
	}
}

// Ingest chunks every document, embeds all chunks in one batch and upserts
// them into the tenant's collection in one call. The batch is fully prepared
// before the store is touched. Every failure is an *Error.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	size, overlap := req.ChunkSize, req.Overlap

	if err := p.validate(ctx, req, size, overlap); err != nil {
		return nil, fail(req.TenantID, StageValidate, err)
	}

	records, texts, err := p.prepare(ctx, req, size, overlap)
	if err != nil {
		return nil, fail(req.TenantID, StageChunk, err)
	}

	degraded, err := p.embed(ctx, req.TenantID, records, texts)
	if err != nil {
		return nil, fail(req.TenantID, StageEmbed, err)
	}

	collection, err := p.collection(ctx, req.TenantID)
	if err != nil {
		return nil, fail(req.TenantID, StageCollection, err)
	}

	if len(records) > 0 {
		if err := p.upsert(ctx, req.TenantID, collection, records); err != nil {
			return nil, fail(req.TenantID, StageUpsert, err)
		}
	}

	result := &Result{
		TenantID:           req.TenantID,
		UpsertedEmbeddings: len(records),
		Documents:          len(req.Documents),
		Degraded:           degraded,
		Duration:           time.Since(start),
	}
	p.logger.Info("Ingestion complete",
		"tenant", result.TenantID,
		"documents", result.Documents,
		"chunks", result.UpsertedEmbeddings,
		"degraded", result.Degraded,
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) validate(ctx context.Context, req Request, size, overlap int) (err error) {
	_, span := observability.StartStageSpan(ctx, string(StageValidate), req.TenantID)
	defer func() { observability.EndSpan(span, err) }()

	if err := storage.ValidateTenantID(req.TenantID); err != nil {
		return err
	}
	if err := chunker.Validate(size, overlap); err != nil {
		return err
	}

	seen := make(map[string]int, len(req.Documents))
	for i, doc := range req.Documents {
		if j, ok := seen[doc.Filename]; ok {
			return fmt.Errorf("%w: %q at documents %d and %d", ErrDuplicateFilename, doc.Filename, j, i)
		}
		seen[doc.Filename] = i
	}
	return nil
}

// prepare chunks every document in input order and builds one record per chunk.
// Vectors are filled in by embed.
func (p *Pipeline) prepare(ctx context.Context, req Request, size, overlap int) (records []storage.Record, texts []string, err error) {
	_, span := observability.StartStageSpan(ctx, string(StageChunk), req.TenantID)
	defer func() { observability.EndSpan(span, err) }()

	for docIndex, doc := range req.Documents {
		chunks, err := chunker.Chunk(doc.Text, size, overlap)
		if err != nil {
			return nil, nil, fmt.Errorf("document %q: %w", doc.Filename, err)
		}
		p.logger.Debug("Chunked document", "filename", doc.Filename, "chunks", len(chunks))

		for chunkIndex, text := range chunks {
			records = append(records, storage.Record{
				ID:   identity.ChunkID(doc.Filename, chunkIndex, req.TenantID),
				Text: text,
				Metadata: storage.ChunkMetadata{
					Filename:      doc.Filename,
					TenantID:      req.TenantID,
					ChunkIndex:    chunkIndex,
					DocumentIndex: docIndex,
					SizeBytes:     len(text),
				},
			})
			texts = append(texts, text)
		}
	}
	return records, texts, nil
}

func (p *Pipeline) embed(ctx context.Context, tenantID string, records []storage.Record, texts []string) (degraded int, err error) {
	ctx, span := observability.StartStageSpan(ctx, string(StageEmbed), tenantID)
	defer func() { observability.EndSpan(span, err) }()

	if len(texts) == 0 {
		return 0, nil
	}

	res := p.embedder.Embed(ctx, texts)
	if len(res.Vectors) != len(records) {
		return 0, fmt.Errorf("resolver returned %d vectors for %d chunks", len(res.Vectors), len(records))
	}
	for i := range records {
		records[i].Vector = res.Vectors[i]
	}

	degraded = res.Degraded(p.embedder.Active())
	if degraded > 0 {
		p.logger.Warn("Embeddings degraded", "tenant", tenantID, "chunks", degraded, "total", len(texts))
	}
	return degraded, nil
}

func (p *Pipeline) collection(ctx context.Context, tenantID string) (c *storage.Collection, err error) {
	ctx, span := observability.StartStageSpan(ctx, string(StageCollection), tenantID)
	defer func() { observability.EndSpan(span, err) }()

	return p.collections.GetOrCreate(ctx, tenantID)
}

func (p *Pipeline) upsert(ctx context.Context, tenantID string, c *storage.Collection, records []storage.Record) (err error) {
	ctx, span := observability.StartStageSpan(ctx, string(StageUpsert), tenantID)
	defer func() { observability.EndSpan(span, err) }()

	if err := p.writer.Upsert(ctx, c, records); err != nil {
		return &storage.UpsertError{Collection: c.Name, Records: len(records), Err: err}
	}
	return nil
}
