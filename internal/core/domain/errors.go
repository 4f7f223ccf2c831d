package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownCategory indicates a category that is not in the taxonomy.
	// This is a configuration error, fatal to the operation that hit it.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrEmptyDocument indicates an artifact with zero chunks was submitted
	// for audit. No report is produced: "nothing to audit" is distinct from
	// "audited and found nothing".
	ErrEmptyDocument = errors.New("document has no chunks")

	// ErrIndexInconsistency indicates a store/index mismatch detected at
	// read time. It is surfaced, never silently patched; the index must be
	// rebuilt from the store.
	ErrIndexInconsistency = errors.New("vector index inconsistent with corpus store")

	// ErrEmbeddingUnavailable indicates a transient embedding backend
	// failure. Callers retry with backoff up to a configured attempt limit.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrUpsertInProgress indicates another upsert holds the per-document
	// lock. Concurrent upserts for the same document ID serialize.
	ErrUpsertInProgress = errors.New("upsert already in progress for document")

	// ErrDimensionMismatch indicates a vector whose dimension differs from
	// the index's fixed dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ChunkEmbeddingError is the permanent per-chunk failure produced when the
// retry budget for a chunk is exhausted. The chunk is excluded from the
// index; the document upsert continues unless every chunk fails.
type ChunkEmbeddingError struct {
	ChunkID  string
	Position int
	Err      error
}

func (e *ChunkEmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed for chunk %s (position %d): %v", e.ChunkID, e.Position, e.Err)
}

func (e *ChunkEmbeddingError) Unwrap() error {
	return e.Err
}

// IsTransientEmbeddingError reports whether the error should be retried
func IsTransientEmbeddingError(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable)
}
