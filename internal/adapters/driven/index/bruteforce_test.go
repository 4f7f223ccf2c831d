package index

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/custodia-labs/audita-core/internal/core/domain"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven/mocks"
)

func chunk(id, documentID string, kind domain.DocumentKind, category domain.CategoryID, vec []float32) *domain.Chunk {
	c := &domain.Chunk{
		ID:         id,
		DocumentID: documentID,
		Kind:       kind,
		Embedding:  vec,
	}
	if category != "" {
		c.Categories = []domain.CategoryID{category}
	}
	return c
}

func mustAdd(t *testing.T, idx *BruteForce, chunks ...*domain.Chunk) {
	t.Helper()
	for _, c := range chunks {
		if err := idx.Add(context.Background(), c); err != nil {
			t.Fatalf("add %s: %v", c.ID, err)
		}
	}
}

func TestBruteForce_SelfSimilarityTopHit(t *testing.T) {
	idx := NewBruteForce(BruteForceConfig{})
	vec := []float32{0.3, 0.4, 0.5}
	mustAdd(t, idx,
		chunk("c-1", "doc-1", domain.KindFramework, "", vec),
		chunk("c-2", "doc-1", domain.KindFramework, "", []float32{-1, 0, 0}),
	)

	matches, err := idx.Search(context.Background(), vec, 10, driven.SearchFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matches[0].ChunkID != "c-1" {
		t.Errorf("self-similar vector should rank first, got %s", matches[0].ChunkID)
	}
	if math.Abs(matches[0].Similarity-1.0) > 1e-9 {
		t.Errorf("self-similarity should be 1.0, got %v", matches[0].Similarity)
	}
}

func TestBruteForce_OrderingAndK(t *testing.T) {
	idx := NewBruteForce(BruteForceConfig{})
	mustAdd(t, idx,
		chunk("far", "doc-1", domain.KindFramework, "", []float32{0, 1}),
		chunk("mid", "doc-1", domain.KindFramework, "", []float32{1, 1}),
		chunk("near", "doc-1", domain.KindFramework, "", []float32{1, 0.01}),
	)

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 2, driven.SearchFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected k=2 results, got %d", len(matches))
	}
	if matches[0].ChunkID != "near" || matches[1].ChunkID != "mid" {
		t.Errorf("expected [near mid], got [%s %s]", matches[0].ChunkID, matches[1].ChunkID)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Errorf("similarities not non-increasing at %d", i)
		}
	}
}

func TestBruteForce_TieBreaksByInsertionOrder(t *testing.T) {
	idx := NewBruteForce(BruteForceConfig{})
	vec := []float32{1, 0}
	mustAdd(t, idx,
		chunk("first", "doc-1", domain.KindFramework, "", vec),
		chunk("second", "doc-1", domain.KindFramework, "", vec),
	)
	// Identical vectors tie exactly; earlier insertion wins
	matches, err := idx.Search(context.Background(), vec, 2, driven.SearchFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matches[0].ChunkID != "first" || matches[1].ChunkID != "second" {
		t.Errorf("ties must break by insertion order, got [%s %s]", matches[0].ChunkID, matches[1].ChunkID)
	}
	if matches[0].Similarity != matches[1].Similarity {
		t.Errorf("identical vectors should tie exactly")
	}
}

func TestBruteForce_Reproducible(t *testing.T) {
	idx := NewBruteForce(BruteForceConfig{})
	mustAdd(t, idx,
		chunk("a", "doc-1", domain.KindFramework, "", []float32{1, 0.2}),
		chunk("b", "doc-1", domain.KindFramework, "", []float32{0.9, 0.1}),
		chunk("c", "doc-1", domain.KindFramework, "", []float32{0.5, 0.5}),
	)

	query := []float32{1, 0}
	first, _ := idx.Search(context.Background(), query, 3, driven.SearchFilter{})
	for i := 0; i < 5; i++ {
		again, _ := idx.Search(context.Background(), query, 3, driven.SearchFilter{})
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("search not reproducible at position %d", j)
			}
		}
	}
}

func TestBruteForce_FilterAppliedBeforeRanking(t *testing.T) {
	idx := NewBruteForce(BruteForceConfig{})
	// The closest vectors are artifacts; with the framework filter the
	// farther framework vector must still be returned
	mustAdd(t, idx,
		chunk("art-close", "doc-a", domain.KindArtifact, "equity", []float32{1, 0}),
		chunk("fw-far", "doc-f", domain.KindFramework, "equity", []float32{0.5, 0.8}),
	)

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 1, driven.SearchFilter{Kind: domain.KindFramework})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].ChunkID != "fw-far" {
		t.Errorf("filter must be applied before truncation to k, got %v", matches)
	}
}

func TestBruteForce_CategoryFilter(t *testing.T) {
	idx := NewBruteForce(BruteForceConfig{})
	mustAdd(t, idx,
		chunk("eq", "doc-1", domain.KindFramework, "equity", []float32{1, 0}),
		chunk("sf", "doc-1", domain.KindFramework, "safety_risk", []float32{1, 0}),
		chunk("none", "doc-1", domain.KindFramework, "", []float32{1, 0}),
	)

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 10, driven.SearchFilter{Category: "equity"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].ChunkID != "eq" {
		t.Errorf("expected only the equity chunk, got %v", matches)
	}
}

func TestBruteForce_RemoveDocument(t *testing.T) {
	idx := NewBruteForce(BruteForceConfig{})
	mustAdd(t, idx,
		chunk("keep", "doc-keep", domain.KindFramework, "", []float32{1, 0}),
		chunk("drop-1", "doc-drop", domain.KindFramework, "", []float32{1, 0}),
		chunk("drop-2", "doc-drop", domain.KindFramework, "", []float32{0.9, 0.1}),
	)

	if err := idx.RemoveDocument(context.Background(), "doc-drop"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matches, _ := idx.Search(context.Background(), []float32{1, 0}, 10, driven.SearchFilter{})
	for _, m := range matches {
		if m.DocumentID == "doc-drop" {
			t.Errorf("removed document still in results: %s", m.ChunkID)
		}
	}
	// Unrelated entries unaffected
	if len(matches) != 1 || matches[0].ChunkID != "keep" {
		t.Errorf("expected only the kept chunk, got %v", matches)
	}
	size, _ := idx.Size(context.Background())
	if size != 1 {
		t.Errorf("expected size 1, got %d", size)
	}
}

func TestBruteForce_ReplaceDocument(t *testing.T) {
	idx := NewBruteForce(BruteForceConfig{})
	mustAdd(t, idx,
		chunk("keep", "doc-keep", domain.KindFramework, "", []float32{0, 1}),
		chunk("old-1", "doc-1", domain.KindFramework, "", []float32{1, 0}),
		chunk("old-2", "doc-1", domain.KindFramework, "", []float32{0.9, 0.1}),
	)

	err := idx.ReplaceDocument(context.Background(), "doc-1", []*domain.Chunk{
		chunk("new-1", "doc-1", domain.KindFramework, "", []float32{0.5, 0.5}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matches, _ := idx.Search(context.Background(), []float32{1, 0}, 10, driven.SearchFilter{})
	for _, m := range matches {
		if m.ChunkID == "old-1" || m.ChunkID == "old-2" {
			t.Errorf("replaced entry still searchable: %s", m.ChunkID)
		}
	}
	size, _ := idx.Size(context.Background())
	if size != 2 {
		t.Errorf("expected 2 vectors after replace, got %d", size)
	}
}

func TestBruteForce_ReplaceDocument_FailureLeavesPriorEntries(t *testing.T) {
	idx := NewBruteForce(BruteForceConfig{})
	mustAdd(t, idx, chunk("old-1", "doc-1", domain.KindFramework, "", []float32{1, 0}))

	err := idx.ReplaceDocument(context.Background(), "doc-1", []*domain.Chunk{
		chunk("new-1", "doc-1", domain.KindFramework, "", []float32{1, 0}),
		chunk("new-2", "doc-1", domain.KindFramework, "", []float32{1, 0, 0}),
	})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	// Validation failed before any mutation; the old entries still serve
	matches, _ := idx.Search(context.Background(), []float32{1, 0}, 1, driven.SearchFilter{})
	if len(matches) != 1 || matches[0].ChunkID != "old-1" {
		t.Errorf("failed replace must leave prior entries searchable, got %v", matches)
	}
}

func TestBruteForce_AddIsIdempotent(t *testing.T) {
	idx := NewBruteForce(BruteForceConfig{})
	c := chunk("c-1", "doc-1", domain.KindFramework, "", []float32{1, 0})
	mustAdd(t, idx, c, c, c)

	size, _ := idx.Size(context.Background())
	if size != 1 {
		t.Errorf("repeated identical add must not grow the index, got %d", size)
	}
}

func TestBruteForce_DimensionEnforced(t *testing.T) {
	idx := NewBruteForce(BruteForceConfig{Dimensions: 3})

	err := idx.Add(context.Background(), chunk("c-1", "doc-1", domain.KindFramework, "", []float32{1, 0}))
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on add, got %v", err)
	}

	mustAdd(t, idx, chunk("c-2", "doc-1", domain.KindFramework, "", []float32{1, 0, 0}))
	if _, err := idx.Search(context.Background(), []float32{1, 0}, 1, driven.SearchFilter{}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on search, got %v", err)
	}
}

func TestBruteForce_RejectsChunkWithoutEmbedding(t *testing.T) {
	idx := NewBruteForce(BruteForceConfig{})
	err := idx.Add(context.Background(), &domain.Chunk{ID: "c-1", DocumentID: "doc-1"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBruteForce_Rebuild(t *testing.T) {
	chunkStore := mocks.NewMockChunkStore()
	_ = chunkStore.ReplaceForDocument(context.Background(), "doc-1", []*domain.Chunk{
		chunk("c-1", "doc-1", domain.KindFramework, "equity", []float32{1, 0}),
		chunk("c-2", "doc-1", domain.KindFramework, "equity", []float32{1, 0}),
		{ID: "c-3", DocumentID: "doc-1", Kind: domain.KindFramework}, // no embedding
	})

	idx := NewBruteForce(BruteForceConfig{ChunkStore: chunkStore})
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	size, _ := idx.Size(context.Background())
	if size != 2 {
		t.Fatalf("expected 2 vectors after rebuild, got %d", size)
	}

	// Insertion order, and therefore tie-breaking, survives the rebuild
	matches, _ := idx.Search(context.Background(), []float32{1, 0}, 2, driven.SearchFilter{Category: "equity"})
	if matches[0].ChunkID != "c-1" || matches[1].ChunkID != "c-2" {
		t.Errorf("rebuild must preserve insertion order, got %v", matches)
	}
}

func TestBruteForce_SearchEmptyIndex(t *testing.T) {
	idx := NewBruteForce(BruteForceConfig{})
	matches, err := idx.Search(context.Background(), []float32{1, 0}, 5, driven.SearchFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %v", matches)
	}
}
