package storage

import "fmt"

// Distance is the similarity metric a collection is created with.
type Distance string

const (
	DistanceCosine Distance = "cosine"
)

// Collection is a named per-tenant partition of the vector store.
type Collection struct {
	Name      string
	Dimension int
	Distance  Distance
}

// ChunkMetadata is stored alongside every vector.
type ChunkMetadata struct {
	Filename      string `json:"filename"`
	TenantID      string `json:"tenant_id"`
	ChunkIndex    int    `json:"chunk_index"`
	DocumentIndex int    `json:"document_index"`
	SizeBytes     int    `json:"size_bytes"`
}

// Map returns the metadata as a payload map keyed by the JSON field names.
func (m ChunkMetadata) Map() map[string]any {
	return map[string]any{
		"filename":       m.Filename,
		"tenant_id":      m.TenantID,
		"chunk_index":    m.ChunkIndex,
		"document_index": m.DocumentIndex,
		"size_bytes":     m.SizeBytes,
	}
}

// Record is one chunk ready to be written: id, vector, text and metadata together.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata ChunkMetadata
}

// ValidateRecords checks every record has an id and a vector of the collection's dimension.
func ValidateRecords(c *Collection, records []Record) error {
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record %d has no id", ErrInvalidRecord, i)
		}
		if c.Dimension > 0 && len(r.Vector) != c.Dimension {
			return fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(r.Vector), c.Dimension)
		}
	}
	return nil
}
