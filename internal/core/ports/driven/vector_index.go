package driven

import (
	"context"

	"github.com/custodia-labs/audita-core/internal/core/domain"
)

// SearchFilter restricts a vector search before ranking.
// Zero values mean "no restriction" for that field.
type SearchFilter struct {
	// Kind restricts matches to one document partition
	Kind domain.DocumentKind

	// Category restricts matches to chunks tagged with this category
	Category domain.CategoryID
}

// Match is one vector search hit
type Match struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Similarity float64 `json:"similarity"`
}

// VectorIndex answers top-K nearest-neighbor queries over chunk vectors.
//
// The reference implementation is exact brute-force cosine search; an
// approximate structure may replace it behind this contract but must
// preserve the ordering semantics within its documented tolerance.
type VectorIndex interface {
	// Add inserts or replaces the entry for chunk.ID. Idempotent on
	// repeated identical input. Chunks without embeddings are rejected.
	Add(ctx context.Context, chunk *domain.Chunk) error

	// RemoveDocument removes all entries belonging to a document
	RemoveDocument(ctx context.Context, documentID string) error

	// ReplaceDocument removes the document's entries and adds the given
	// chunks as one step: concurrent searches observe either the old set
	// or the new set, never a mix or an empty interim. A validation
	// failure leaves the prior entries in place.
	ReplaceDocument(ctx context.Context, documentID string, chunks []*domain.Chunk) error

	// Search returns at most k matches sorted by descending cosine
	// similarity, ties broken by lower insertion order. The filter is
	// applied before ranking, not after truncation to k.
	Search(ctx context.Context, embedding []float32, k int, filter SearchFilter) ([]Match, error)

	// Rebuild discards the index and reloads every embedded chunk from
	// the corpus store. Called at startup to restore a consistent view.
	Rebuild(ctx context.Context) error

	// Size returns the number of indexed vectors
	Size(ctx context.Context) (int, error)
}
