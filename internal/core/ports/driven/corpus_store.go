package driven

import (
	"context"

	"github.com/custodia-labs/audita-core/internal/core/domain"
)

// DocumentStore handles source document persistence (PostgreSQL)
type DocumentStore interface {
	// Save creates or updates a document
	Save(ctx context.Context, doc *domain.SourceDocument) error

	// SaveWithChunks saves the document and replaces its chunks in one
	// transaction. On failure neither the document row nor the chunk
	// set changes; readers never observe a partial document state.
	SaveWithChunks(ctx context.Context, doc *domain.SourceDocument, chunks []*domain.Chunk) error

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.SourceDocument, error)

	// ListByKind retrieves all documents of one kind (framework or artifact)
	ListByKind(ctx context.Context, kind domain.DocumentKind) ([]*domain.SourceDocument, error)

	// List retrieves all documents
	List(ctx context.Context) ([]*domain.SourceDocument, error)

	// Delete deletes a document. Chunks cascade via the ChunkStore.
	Delete(ctx context.Context, id string) error

	// Count returns document counts partitioned by kind
	Count(ctx context.Context) (framework int, artifact int, err error)
}

// ChunkStore handles chunk persistence: content, tags and vectors.
// Together with DocumentStore it forms the Corpus Store.
type ChunkStore interface {
	// ReplaceForDocument atomically replaces all chunks of a document:
	// prior chunks are removed and the new set inserted in one
	// transaction, or the operation fails leaving prior state intact.
	ReplaceForDocument(ctx context.Context, documentID string, chunks []*domain.Chunk) error

	// GetByDocument retrieves all chunks for a document in position order
	GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error)

	// ListEmbedded retrieves every chunk that carries an embedding,
	// in insertion order. Used to rebuild the vector index on startup.
	ListEmbedded(ctx context.Context) ([]*domain.Chunk, error)

	// DeleteByDocument deletes all chunks for a document
	DeleteByDocument(ctx context.Context, documentID string) error

	// Count returns the total chunk count and how many carry no category tag
	Count(ctx context.Context) (total int, untagged int, err error)
}

// ReportStore persists audit reports keyed by artifact document ID.
// A re-audit replaces the prior report wholesale.
type ReportStore interface {
	// Save stores a report, replacing any prior report for the document
	Save(ctx context.Context, report *domain.AuditReport) error

	// Get retrieves the report for a document
	Get(ctx context.Context, documentID string) (*domain.AuditReport, error)

	// List retrieves all stored reports
	List(ctx context.Context) ([]*domain.AuditReport, error)

	// Delete removes the report for a document
	Delete(ctx context.Context, documentID string) error
}
