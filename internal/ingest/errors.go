package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrIngestionFailed is matched by every error Ingest returns.
	ErrIngestionFailed = errors.New("ingestion failed")

	ErrDuplicateFilename = errors.New("duplicate filename in request")
)

// Stage names the step of an ingestion request that failed.
type Stage string

const (
	StageValidate   Stage = "validate"
	StageChunk      Stage = "chunk"
	StageEmbed      Stage = "embed"
	StageCollection Stage = "collection"
	StageUpsert     Stage = "upsert"
)

// Error reports a failed ingestion request. It matches ErrIngestionFailed
// and the underlying cause with errors.Is.
type Error struct {
	TenantID string
	Stage    Stage
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", ErrIngestionFailed, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrIngestionFailed, e.Err}
}

func fail(tenantID string, stage Stage, err error) error {
	return &Error{TenantID: tenantID, Stage: stage, Err: err}
}
