package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/audita-core/internal/chunker"
	"github.com/custodia-labs/audita-core/internal/core/domain"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven"
	"github.com/custodia-labs/audita-core/internal/core/ports/driving"
)

// Ensure corpusService implements CorpusService
var _ driving.CorpusService = (*corpusService)(nil)

const (
	upsertLockPrefix = "corpus:upsert:"
	upsertLockTTL    = 2 * time.Minute
	upsertLockWait   = 30 * time.Second
	upsertLockPoll   = 100 * time.Millisecond
)

// corpusService implements the CorpusService interface.
// It owns the document pipeline: chunk, embed, tag, store, index.
type corpusService struct {
	documentStore driven.DocumentStore
	chunkStore    driven.ChunkStore
	index         driven.VectorIndex
	chunker       *chunker.Chunker
	embedder      *Embedder
	tagger        *Tagger
	lock          driven.DistributedLock
	logger        *slog.Logger
}

// CorpusServiceConfig holds dependencies for the corpus service.
type CorpusServiceConfig struct {
	DocumentStore driven.DocumentStore
	ChunkStore    driven.ChunkStore
	Index         driven.VectorIndex
	Chunker       *chunker.Chunker
	Embedder      *Embedder
	Tagger        *Tagger

	// Lock serializes concurrent upserts of the same document ID.
	// Optional: without it same-document upserts race last-writer-wins
	// at the store level.
	Lock driven.DistributedLock

	Logger *slog.Logger
}

// NewCorpusService creates a new CorpusService.
func NewCorpusService(cfg CorpusServiceConfig) driving.CorpusService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &corpusService{
		documentStore: cfg.DocumentStore,
		chunkStore:    cfg.ChunkStore,
		index:         cfg.Index,
		chunker:       cfg.Chunker,
		embedder:      cfg.Embedder,
		tagger:        cfg.Tagger,
		lock:          cfg.Lock,
		logger:        logger,
	}
}

// UpsertDocument runs the full pipeline for one document, replacing any
// prior content for the same ID. Store and index are updated as one
// logical operation: a failure leaves the prior state intact.
func (s *corpusService) UpsertDocument(ctx context.Context, doc *domain.SourceDocument, text string) (*domain.DocumentWithChunks, error) {
	if doc == nil || doc.ID == "" {
		return nil, fmt.Errorf("%w: document ID is required", domain.ErrInvalidInput)
	}
	if !doc.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown document kind %q", domain.ErrInvalidInput, doc.Kind)
	}

	release, err := s.acquireUpsertLock(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.IndexedAt = now

	chunks, failed, err := s.buildChunks(ctx, doc, text, now)
	if err != nil {
		return nil, err
	}

	// Document row and chunk set commit together; a failure here leaves
	// the prior document state fully intact
	if err := s.documentStore.SaveWithChunks(ctx, doc, chunks); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	// Store write succeeded; swap the index entries in one step so
	// searches never mix old vectors with the new chunk set
	embedded := make([]*domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) > 0 {
			embedded = append(embedded, chunk)
		}
	}
	if err := s.index.ReplaceDocument(ctx, doc.ID, embedded); err != nil {
		return nil, fmt.Errorf("failed to index document: %w", err)
	}

	s.logger.Info("document upserted",
		"document_id", doc.ID,
		"kind", doc.Kind,
		"chunks", len(chunks),
		"indexed", len(embedded),
		"embedding_failures", failed,
		"duration_seconds", time.Since(start).Seconds(),
	)

	return &domain.DocumentWithChunks{Document: doc, Chunks: chunks}, nil
}

// buildChunks chunks, embeds and tags the document text.
// Per-chunk embedding failures are isolated unless every chunk fails.
func (s *corpusService) buildChunks(ctx context.Context, doc *domain.SourceDocument, text string, now time.Time) ([]*domain.Chunk, int, error) {
	passages := s.chunker.Split(text)

	chunks := make([]*domain.Chunk, 0, len(passages))
	for _, p := range passages {
		chunks = append(chunks, &domain.Chunk{
			ID:         fmt.Sprintf("%s-chunk-%d", doc.ID, p.Position),
			DocumentID: doc.ID,
			Kind:       doc.Kind,
			Content:    p.Content,
			Position:   p.Position,
			StartChar:  p.StartChar,
			EndChar:    p.EndChar,
			CreatedAt:  now,
		})
	}
	if len(chunks) == 0 {
		return nil, 0, nil
	}

	failures, err := s.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, 0, err
	}
	if len(failures) == len(chunks) {
		return nil, 0, fmt.Errorf("embedding failed for every chunk of document %s: %w", doc.ID, failures[0])
	}
	for _, f := range failures {
		s.logger.Warn("chunk excluded from index", "document_id", doc.ID, "chunk_id", f.ChunkID, "error", f.Err)
	}

	// Tagging sees chunks in document order regardless of embedding
	// completion order
	for _, chunk := range chunks {
		tags, err := s.tagger.Tag(ctx, doc, chunk)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to tag chunk %s: %w", chunk.ID, err)
		}
		chunk.Categories = tags
	}

	return chunks, len(failures), nil
}

// acquireUpsertLock serializes upserts per document ID. Waits up to
// upsertLockWait for the current holder, then gives up.
func (s *corpusService) acquireUpsertLock(ctx context.Context, documentID string) (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}

	name := upsertLockPrefix + documentID
	deadline := time.Now().Add(upsertLockWait)
	for {
		acquired, err := s.lock.Acquire(ctx, name, upsertLockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire upsert lock: %w", err)
		}
		if acquired {
			return func() {
				if err := s.lock.Release(context.WithoutCancel(ctx), name); err != nil {
					s.logger.Warn("failed to release upsert lock", "document_id", documentID, "error", err)
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUpsertInProgress, documentID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(upsertLockPoll):
		}
	}
}

// DeleteDocument removes the document, its chunks and its index entries.
func (s *corpusService) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.documentStore.Get(ctx, id); err != nil {
		return err
	}

	if err := s.index.RemoveDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to remove index entries: %w", err)
	}
	if err := s.chunkStore.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := s.documentStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	s.logger.Info("document deleted", "document_id", id)
	return nil
}

// GetDocument retrieves a document with its chunks.
func (s *corpusService) GetDocument(ctx context.Context, id string) (*domain.DocumentWithChunks, error) {
	doc, err := s.documentStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	chunks, err := s.chunkStore.GetByDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.DocumentWithChunks{Document: doc, Chunks: chunks}, nil
}

// ListDocuments lists documents, restricted to one kind when given.
func (s *corpusService) ListDocuments(ctx context.Context, kind domain.DocumentKind) ([]*domain.SourceDocument, error) {
	if kind == "" {
		return s.documentStore.List(ctx)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown document kind %q", domain.ErrInvalidInput, kind)
	}
	return s.documentStore.ListByKind(ctx, kind)
}

// Stats summarizes the corpus and index.
func (s *corpusService) Stats(ctx context.Context) (*domain.CorpusStats, error) {
	framework, artifact, err := s.documentStore.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	total, untagged, err := s.chunkStore.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	size, err := s.index.Size(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read index size: %w", err)
	}

	return &domain.CorpusStats{
		FrameworkDocuments: framework,
		ArtifactDocuments:  artifact,
		Chunks:             total,
		IndexedVectors:     size,
		UntaggedChunks:     untagged,
	}, nil
}

// VerifyConsistency cross-checks the store against the index.
// A mismatch is surfaced as ErrIndexInconsistency; the caller must
// rebuild the index from the store.
func (s *corpusService) VerifyConsistency(ctx context.Context) error {
	embedded, err := s.chunkStore.ListEmbedded(ctx)
	if err != nil {
		return fmt.Errorf("failed to list embedded chunks: %w", err)
	}
	size, err := s.index.Size(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index size: %w", err)
	}

	if size != len(embedded) {
		return fmt.Errorf("%w: store has %d embedded chunks, index has %d vectors",
			domain.ErrIndexInconsistency, len(embedded), size)
	}
	return nil
}
