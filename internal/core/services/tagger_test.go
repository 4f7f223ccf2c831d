package services

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/audita-core/internal/core/domain"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven/mocks"
)

func testTaxonomy() domain.Taxonomy {
	return domain.Taxonomy{
		domain.CategorySafety: {
			Name:      "Safety & Risk",
			Weight:    0.9,
			Exemplars: []string{"safety exemplar"},
		},
		domain.CategoryEquity: {
			Name:      "Equity & Fairness",
			Weight:    1.0,
			Exemplars: []string{"equity exemplar"},
		},
	}
}

func newTestTagger(embedding *mocks.MockEmbeddingService, threshold float64) *Tagger {
	return NewTagger(TaggerConfig{
		Embedder:  NewEmbedder(EmbedderConfig{Embedding: embedding, Concurrency: 1}),
		Taxonomy:  testTaxonomy(),
		Threshold: threshold,
	})
}

func TestTagger_DeclaredCategoriesUsedVerbatim(t *testing.T) {
	embedding := mocks.NewMockEmbeddingService()
	tagger := newTestTagger(embedding, 0.5)

	doc := &domain.SourceDocument{
		ID:                 "doc-1",
		Kind:               domain.KindFramework,
		DeclaredCategories: []domain.CategoryID{domain.CategoryEquity},
	}
	chunk := &domain.Chunk{ID: "chunk-1", DocumentID: "doc-1", Content: "anything"}

	tags, err := tagger.Tag(context.Background(), doc, chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tags) != 1 || tags[0] != domain.CategoryEquity {
		t.Errorf("expected declared categories verbatim, got %v", tags)
	}
	// Declared metadata must not trigger exemplar embedding
	if embedding.Calls() != 0 {
		t.Errorf("expected no embedding calls, got %d", embedding.Calls())
	}
}

func TestTagger_DeclaredUnknownCategory(t *testing.T) {
	tagger := newTestTagger(mocks.NewMockEmbeddingService(), 0.5)

	doc := &domain.SourceDocument{
		ID:                 "doc-1",
		Kind:               domain.KindArtifact,
		DeclaredCategories: []domain.CategoryID{"not_in_taxonomy"},
	}
	chunk := &domain.Chunk{ID: "chunk-1", DocumentID: "doc-1"}

	_, err := tagger.Tag(context.Background(), doc, chunk)
	if !errors.Is(err, domain.ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestTagger_ZeroShotAboveThreshold(t *testing.T) {
	embedding := mocks.NewMockEmbeddingService()
	embedding.SetFixed("safety exemplar", []float32{1, 0})
	embedding.SetFixed("equity exemplar", []float32{0, 1})
	tagger := newTestTagger(embedding, 0.8)

	doc := &domain.SourceDocument{ID: "doc-1", Kind: domain.KindArtifact}
	chunk := &domain.Chunk{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Content:    "red teaming findings",
		Embedding:  []float32{0.95, 0.05},
	}

	tags, err := tagger.Tag(context.Background(), doc, chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tags) != 1 || tags[0] != domain.CategorySafety {
		t.Errorf("expected [safety_risk], got %v", tags)
	}
}

func TestTagger_MultiLabel(t *testing.T) {
	embedding := mocks.NewMockEmbeddingService()
	embedding.SetFixed("safety exemplar", []float32{1, 0})
	embedding.SetFixed("equity exemplar", []float32{0, 1})
	tagger := newTestTagger(embedding, 0.5)

	doc := &domain.SourceDocument{ID: "doc-1", Kind: domain.KindArtifact}
	chunk := &domain.Chunk{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Embedding:  []float32{1, 1}, // equidistant, cosine ~0.707 to both
	}

	tags, err := tagger.Tag(context.Background(), doc, chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected both categories, got %v", tags)
	}
	// Deterministic sorted order
	if tags[0] != domain.CategoryEquity || tags[1] != domain.CategorySafety {
		t.Errorf("expected sorted [equity safety_risk], got %v", tags)
	}
}

func TestTagger_NoMatchYieldsEmptySet(t *testing.T) {
	embedding := mocks.NewMockEmbeddingService()
	embedding.SetFixed("safety exemplar", []float32{1, 0, 0})
	embedding.SetFixed("equity exemplar", []float32{0, 1, 0})
	tagger := newTestTagger(embedding, 0.8)

	doc := &domain.SourceDocument{ID: "doc-1", Kind: domain.KindArtifact}
	chunk := &domain.Chunk{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Embedding:  []float32{0, 0, 1}, // orthogonal to every centroid
	}

	tags, err := tagger.Tag(context.Background(), doc, chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("expected empty tag set, got %v", tags)
	}
}

func TestTagger_ChunkWithoutEmbedding(t *testing.T) {
	tagger := newTestTagger(mocks.NewMockEmbeddingService(), 0.5)

	doc := &domain.SourceDocument{ID: "doc-1", Kind: domain.KindArtifact}
	chunk := &domain.Chunk{ID: "chunk-1", DocumentID: "doc-1"}

	tags, err := tagger.Tag(context.Background(), doc, chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tags != nil {
		t.Errorf("chunk without embedding should stay untagged, got %v", tags)
	}
}

func TestTagger_CentroidsComputedOnce(t *testing.T) {
	embedding := mocks.NewMockEmbeddingService()
	embedding.SetFixed("safety exemplar", []float32{1, 0})
	embedding.SetFixed("equity exemplar", []float32{0, 1})
	tagger := newTestTagger(embedding, 0.5)

	doc := &domain.SourceDocument{ID: "doc-1", Kind: domain.KindArtifact}
	chunk := &domain.Chunk{ID: "chunk-1", DocumentID: "doc-1", Embedding: []float32{1, 0}}

	for i := 0; i < 3; i++ {
		if _, err := tagger.Tag(context.Background(), doc, chunk); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// One embedding call per exemplar, cached afterwards
	if got := embedding.Calls(); got != 2 {
		t.Errorf("expected 2 exemplar embedding calls, got %d", got)
	}
}
