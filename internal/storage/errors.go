package storage

import "errors"

var (
	ErrStoreUnreachable   = errors.New("collection store unreachable")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("collection already exists")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrInvalidRecord      = errors.New("invalid record")
	ErrInvalidTenant      = errors.New("invalid tenant id")
)

// CollectionAccessError reports that a tenant collection could not be fetched or created.
type CollectionAccessError struct {
	Collection string
	Err        error
}

func (e *CollectionAccessError) Error() string {
	return "access collection " + e.Collection + ": " + e.Err.Error()
}

func (e *CollectionAccessError) Unwrap() error { return e.Err }

// UpsertError reports that the store rejected a batch write.
type UpsertError struct {
	Collection string
	Records    int
	Err        error
}

func (e *UpsertError) Error() string {
	return "upsert into " + e.Collection + ": " + e.Err.Error()
}

func (e *UpsertError) Unwrap() error { return e.Err }
