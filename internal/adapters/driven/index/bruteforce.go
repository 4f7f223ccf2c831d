// Package index provides the in-memory vector index.
//
// Exact brute-force cosine search is the reference semantics: corpus
// sizes are small (tens of thousands of chunks), and any approximate
// replacement behind the same port must preserve the ordering contract
// within a documented tolerance.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/audita-core/internal/core/domain"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*BruteForce)(nil)

type entry struct {
	chunkID    string
	documentID string
	kind       domain.DocumentKind
	categories []domain.CategoryID
	vector     []float32
	norm       float64

	// order is the insertion ordinal, the search tie-breaker
	order int
}

func (e *entry) hasCategory(id domain.CategoryID) bool {
	for _, c := range e.categories {
		if c == id {
			return true
		}
	}
	return false
}

// BruteForce is an exact cosine-similarity index over chunk vectors.
// All vectors share one dimension, fixed on first insert (or configured
// up front). Safe for concurrent use; searches run lock-free against a
// read snapshot taken under RLock.
type BruteForce struct {
	chunkStore driven.ChunkStore
	logger     *slog.Logger

	mu        sync.RWMutex
	entries   []*entry
	byChunkID map[string]*entry
	dims      int
	nextOrder int
}

// BruteForceConfig holds dependencies for the index.
type BruteForceConfig struct {
	// ChunkStore is the rebuild source. Optional when Rebuild is unused.
	ChunkStore driven.ChunkStore

	// Dimensions fixes the vector dimension up front; 0 adopts the
	// dimension of the first vector added.
	Dimensions int

	Logger *slog.Logger
}

// NewBruteForce creates a new brute-force index.
func NewBruteForce(cfg BruteForceConfig) *BruteForce {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BruteForce{
		chunkStore: cfg.ChunkStore,
		logger:     logger,
		byChunkID:  make(map[string]*entry),
		dims:       cfg.Dimensions,
	}
}

// Add inserts or replaces the entry for chunk.ID.
// Idempotent on repeated identical input: replacing an entry keeps its
// original insertion order.
func (b *BruteForce) Add(ctx context.Context, chunk *domain.Chunk) error {
	if len(chunk.Embedding) == 0 {
		return fmt.Errorf("%w: chunk %s has no embedding", domain.ErrInvalidInput, chunk.ID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dims == 0 {
		b.dims = len(chunk.Embedding)
	}
	if len(chunk.Embedding) != b.dims {
		return fmt.Errorf("%w: got %d, index has %d", domain.ErrDimensionMismatch, len(chunk.Embedding), b.dims)
	}

	b.addLocked(chunk)
	return nil
}

// addLocked inserts an already-validated chunk. Caller holds b.mu.
func (b *BruteForce) addLocked(chunk *domain.Chunk) {
	vector := make([]float32, len(chunk.Embedding))
	copy(vector, chunk.Embedding)
	categories := make([]domain.CategoryID, len(chunk.Categories))
	copy(categories, chunk.Categories)

	if existing, ok := b.byChunkID[chunk.ID]; ok {
		existing.documentID = chunk.DocumentID
		existing.kind = chunk.Kind
		existing.categories = categories
		existing.vector = vector
		existing.norm = vectorNorm(vector)
		return
	}

	e := &entry{
		chunkID:    chunk.ID,
		documentID: chunk.DocumentID,
		kind:       chunk.Kind,
		categories: categories,
		vector:     vector,
		norm:       vectorNorm(vector),
		order:      b.nextOrder,
	}
	b.nextOrder++
	b.entries = append(b.entries, e)
	b.byChunkID[chunk.ID] = e
}

// RemoveDocument removes all entries belonging to a document
func (b *BruteForce) RemoveDocument(ctx context.Context, documentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeDocumentLocked(documentID)
	return nil
}

func (b *BruteForce) removeDocumentLocked(documentID string) {
	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.documentID == documentID {
			delete(b.byChunkID, e.chunkID)
			continue
		}
		kept = append(kept, e)
	}
	b.entries = kept
}

// ReplaceDocument swaps all entries of a document for the given chunks
// under one lock, so searches observe either the old set or the new set.
// Every chunk is validated before any mutation; a failure leaves the
// prior entries in place.
func (b *BruteForce) ReplaceDocument(ctx context.Context, documentID string, chunks []*domain.Chunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	dims := b.dims
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %s has no embedding", domain.ErrInvalidInput, chunk.ID)
		}
		if dims == 0 {
			dims = len(chunk.Embedding)
		}
		if len(chunk.Embedding) != dims {
			return fmt.Errorf("%w: got %d, index has %d", domain.ErrDimensionMismatch, len(chunk.Embedding), dims)
		}
	}
	b.dims = dims

	b.removeDocumentLocked(documentID)
	for _, chunk := range chunks {
		b.addLocked(chunk)
	}
	return nil
}

// Search returns at most k matches by descending cosine similarity,
// ties broken by lower insertion order. The filter narrows the candidate
// set before ranking, never after truncation to k.
func (b *BruteForce) Search(ctx context.Context, embedding []float32, k int, filter driven.SearchFilter) ([]driven.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.dims != 0 && len(embedding) != b.dims {
		return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(embedding), b.dims)
	}

	queryNorm := vectorNorm(embedding)

	type scored struct {
		e   *entry
		sim float64
	}
	var candidates []scored
	for _, e := range b.entries {
		if filter.Kind != "" && e.kind != filter.Kind {
			continue
		}
		if filter.Category != "" && !e.hasCategory(filter.Category) {
			continue
		}
		candidates = append(candidates, scored{e: e, sim: cosine(embedding, e.vector, queryNorm, e.norm)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		return candidates[i].e.order < candidates[j].e.order
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	matches := make([]driven.Match, len(candidates))
	for i, c := range candidates {
		matches[i] = driven.Match{
			ChunkID:    c.e.chunkID,
			DocumentID: c.e.documentID,
			Similarity: c.sim,
		}
	}
	return matches, nil
}

// Rebuild discards the index and reloads every embedded chunk from the
// corpus store in insertion order, restoring the original tie-breaking.
func (b *BruteForce) Rebuild(ctx context.Context) error {
	if b.chunkStore == nil {
		return fmt.Errorf("index has no chunk store to rebuild from")
	}

	chunks, err := b.chunkStore.ListEmbedded(ctx)
	if err != nil {
		return fmt.Errorf("failed to load embedded chunks: %w", err)
	}

	b.mu.Lock()
	b.entries = nil
	b.byChunkID = make(map[string]*entry)
	b.nextOrder = 0
	b.mu.Unlock()

	for _, chunk := range chunks {
		if err := b.Add(ctx, chunk); err != nil {
			return fmt.Errorf("failed to re-index chunk %s: %w", chunk.ID, err)
		}
	}

	b.logger.Info("vector index rebuilt", "vectors", len(chunks), "dimensions", b.dims)
	return nil
}

// Size returns the number of indexed vectors
func (b *BruteForce) Size(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries), nil
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, normA, normB float64) float64 {
	if len(a) != len(b) || normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
