package driving

import (
	"context"

	"github.com/custodia-labs/audita-core/internal/core/domain"
)

// CorpusService manages the indexed corpus: documents in, chunks +
// vectors + tags out. Upserts are atomic per document; concurrent
// upserts of the same document ID serialize (last writer wins).
type CorpusService interface {
	// UpsertDocument chunks, embeds, tags and indexes the document's
	// cleaned text, replacing any prior content for the same document ID
	// as one logical operation. Per-chunk embedding failures are isolated;
	// the upsert fails only when every chunk fails.
	UpsertDocument(ctx context.Context, doc *domain.SourceDocument, text string) (*domain.DocumentWithChunks, error)

	// DeleteDocument removes the document, its chunks and its index
	// entries as one logical operation.
	DeleteDocument(ctx context.Context, id string) error

	// GetDocument retrieves a document with its chunks
	GetDocument(ctx context.Context, id string) (*domain.DocumentWithChunks, error)

	// ListDocuments lists documents, optionally restricted to one kind
	// (empty kind means all).
	ListDocuments(ctx context.Context, kind domain.DocumentKind) ([]*domain.SourceDocument, error)

	// Stats summarizes the corpus and index
	Stats(ctx context.Context) (*domain.CorpusStats, error)

	// VerifyConsistency cross-checks store and index; a mismatch is
	// surfaced as domain.ErrIndexInconsistency, never silently patched.
	VerifyConsistency(ctx context.Context) error
}
