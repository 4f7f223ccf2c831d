package services

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/audita-core/internal/chunker"
	"github.com/custodia-labs/audita-core/internal/core/domain"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/audita-core/internal/core/ports/driving"
)

type corpusFixture struct {
	svc           driving.CorpusService
	documentStore *mocks.MockDocumentStore
	chunkStore    *mocks.MockChunkStore
	index         *mocks.MockVectorIndex
	embedding     *mocks.MockEmbeddingService
	lock          *mocks.MockDistributedLock
}

func newCorpusFixture(maxRetries int) *corpusFixture {
	embedding := mocks.NewMockEmbeddingService()
	chunkStore := mocks.NewMockChunkStore()
	documentStore := mocks.NewMockDocumentStore().WithChunkStore(chunkStore)
	index := mocks.NewMockVectorIndex()
	lock := mocks.NewMockDistributedLock()

	embedder := NewEmbedder(EmbedderConfig{
		Embedding:   embedding,
		Concurrency: 1,
		MaxRetries:  maxRetries,
	})
	tagger := NewTagger(TaggerConfig{
		Embedder:  embedder,
		Taxonomy:  testTaxonomy(),
		Threshold: 0.5,
	})

	svc := NewCorpusService(CorpusServiceConfig{
		DocumentStore: documentStore,
		ChunkStore:    chunkStore,
		Index:         index,
		Chunker:       chunker.New(chunker.Config{MaxTokens: 10, OverlapTokens: 2}),
		Embedder:      embedder,
		Tagger:        tagger,
		Lock:          lock,
	})

	return &corpusFixture{
		svc:           svc,
		documentStore: documentStore,
		chunkStore:    chunkStore,
		index:         index,
		embedding:     embedding,
		lock:          lock,
	}
}

func equityDoc(id string, kind domain.DocumentKind) *domain.SourceDocument {
	return &domain.SourceDocument{
		ID:                 id,
		Title:              "Test Document",
		Kind:               kind,
		DeclaredCategories: []domain.CategoryID{domain.CategoryEquity},
	}
}

const testText = "Fairness metrics were computed per group. Bias mitigation was applied during training. Results are disaggregated by language."

func TestCorpusService_UpsertDocument(t *testing.T) {
	f := newCorpusFixture(0)

	doc := equityDoc("doc-1", domain.KindFramework)
	result, err := f.svc.UpsertDocument(context.Background(), doc, testText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Chunks) == 0 {
		t.Fatalf("expected chunks, got none")
	}

	// Document persisted
	if _, err := f.documentStore.Get(context.Background(), "doc-1"); err != nil {
		t.Errorf("document not saved: %v", err)
	}

	// Chunks persisted with tags and embeddings
	stored, err := f.chunkStore.GetByDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != len(result.Chunks) {
		t.Errorf("expected %d stored chunks, got %d", len(result.Chunks), len(stored))
	}
	for _, c := range stored {
		if !c.HasCategory(domain.CategoryEquity) {
			t.Errorf("chunk %s missing declared category", c.ID)
		}
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %s missing embedding", c.ID)
		}
	}

	// Index holds one vector per chunk
	size, _ := f.index.Size(context.Background())
	if size != len(result.Chunks) {
		t.Errorf("expected %d indexed vectors, got %d", len(result.Chunks), size)
	}
}

func TestCorpusService_Upsert_ReplacesPrior(t *testing.T) {
	f := newCorpusFixture(0)
	doc := equityDoc("doc-1", domain.KindArtifact)

	first, err := f.svc.UpsertDocument(context.Background(), doc, testText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := f.svc.UpsertDocument(context.Background(), doc, "One short replacement sentence.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.Chunks) >= len(first.Chunks) {
		t.Fatalf("replacement should have fewer chunks: %d vs %d", len(second.Chunks), len(first.Chunks))
	}

	stored, _ := f.chunkStore.GetByDocument(context.Background(), "doc-1")
	if len(stored) != len(second.Chunks) {
		t.Errorf("store should hold only the replacement chunks, got %d", len(stored))
	}
	size, _ := f.index.Size(context.Background())
	if size != len(second.Chunks) {
		t.Errorf("index should hold only the replacement vectors, got %d", size)
	}
}

func TestCorpusService_Upsert_AtomicOnStoreFailure(t *testing.T) {
	f := newCorpusFixture(0)
	doc := equityDoc("doc-1", domain.KindArtifact)

	first, err := f.svc.UpsertDocument(context.Background(), doc, testText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	priorSize, _ := f.index.Size(context.Background())

	f.chunkStore.FailReplace(errors.New("disk full"))
	if _, err := f.svc.UpsertDocument(context.Background(), doc, "Entirely new content here."); err == nil {
		t.Fatalf("expected upsert to fail")
	}

	// Prior state intact: old chunks still stored and searchable
	stored, _ := f.chunkStore.GetByDocument(context.Background(), "doc-1")
	if len(stored) != len(first.Chunks) {
		t.Errorf("expected %d prior chunks to survive, got %d", len(first.Chunks), len(stored))
	}
	size, _ := f.index.Size(context.Background())
	if size != priorSize {
		t.Errorf("index must be untouched by the failed upsert: %d vs %d", size, priorSize)
	}

	matches, _ := f.index.Search(context.Background(), first.Chunks[0].Embedding, 1, driven.SearchFilter{})
	if len(matches) == 0 || matches[0].ChunkID != first.Chunks[0].ID {
		t.Errorf("prior chunks must remain searchable after failed upsert")
	}
}

func TestCorpusService_Upsert_FailureKeepsPriorDocument(t *testing.T) {
	f := newCorpusFixture(0)

	first := equityDoc("doc-1", domain.KindArtifact)
	first.Title = "version one"
	if _, err := f.svc.UpsertDocument(context.Background(), first, testText); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := equityDoc("doc-1", domain.KindArtifact)
	second.Title = "version two"
	f.chunkStore.FailReplace(errors.New("disk full"))
	if _, err := f.svc.UpsertDocument(context.Background(), second, "Entirely new content here."); err == nil {
		t.Fatalf("expected upsert to fail")
	}

	// The failed upsert must not leave the new document row visible over
	// the old chunks
	doc, err := f.documentStore.Get(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "version one" {
		t.Errorf("prior document metadata must survive a failed upsert, got title %q", doc.Title)
	}
}

func TestCorpusService_Upsert_AllChunksFailEmbedding(t *testing.T) {
	f := newCorpusFixture(0)
	f.embedding.FailPermanent(errors.New("model gone"))

	doc := equityDoc("doc-1", domain.KindArtifact)
	if _, err := f.svc.UpsertDocument(context.Background(), doc, testText); err == nil {
		t.Fatalf("expected upsert to fail when every chunk fails to embed")
	}

	// Nothing persisted
	if _, err := f.documentStore.Get(context.Background(), "doc-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("document must not be saved on total embedding failure")
	}
	size, _ := f.index.Size(context.Background())
	if size != 0 {
		t.Errorf("index must stay empty, got %d vectors", size)
	}
}

func TestCorpusService_Upsert_PartialEmbeddingFailureIsolated(t *testing.T) {
	f := newCorpusFixture(0)
	// With no retries and sequential embedding, exactly the first chunk fails
	f.embedding.FailTransient(1)

	doc := equityDoc("doc-1", domain.KindArtifact)
	result, err := f.svc.UpsertDocument(context.Background(), doc, testText)
	if err != nil {
		t.Fatalf("expected partial failure to be isolated, got %v", err)
	}
	if len(result.Chunks) < 2 {
		t.Fatalf("test needs at least 2 chunks, got %d", len(result.Chunks))
	}
	if len(result.Chunks[0].Embedding) != 0 {
		t.Errorf("failed chunk should carry no embedding")
	}

	// All chunks stored, failed one excluded from the index
	stored, _ := f.chunkStore.GetByDocument(context.Background(), "doc-1")
	if len(stored) != len(result.Chunks) {
		t.Errorf("all chunks should be stored, got %d of %d", len(stored), len(result.Chunks))
	}
	size, _ := f.index.Size(context.Background())
	if size != len(result.Chunks)-1 {
		t.Errorf("expected %d indexed vectors, got %d", len(result.Chunks)-1, size)
	}
}

func TestCorpusService_Upsert_InvalidInput(t *testing.T) {
	f := newCorpusFixture(0)

	_, err := f.svc.UpsertDocument(context.Background(), &domain.SourceDocument{Kind: domain.KindArtifact}, "text")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing ID, got %v", err)
	}

	_, err = f.svc.UpsertDocument(context.Background(), &domain.SourceDocument{ID: "doc-1", Kind: "banana"}, "text")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad kind, got %v", err)
	}
}

func TestCorpusService_Upsert_ReleasesLock(t *testing.T) {
	f := newCorpusFixture(0)
	doc := equityDoc("doc-1", domain.KindArtifact)

	if _, err := f.svc.UpsertDocument(context.Background(), doc, testText); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The per-document lock must be free again
	acquired, err := f.lock.Acquire(context.Background(), "corpus:upsert:doc-1", 0)
	if err != nil || !acquired {
		t.Errorf("upsert lock was not released: acquired=%v err=%v", acquired, err)
	}
}

func TestCorpusService_DeleteDocument(t *testing.T) {
	f := newCorpusFixture(0)
	doc := equityDoc("doc-1", domain.KindArtifact)

	result, err := f.svc.UpsertDocument(context.Background(), doc, testText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.svc.DeleteDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.documentStore.Get(context.Background(), "doc-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("document should be gone, got %v", err)
	}
	matches, _ := f.index.Search(context.Background(), result.Chunks[0].Embedding, 10, driven.SearchFilter{})
	for _, m := range matches {
		if m.DocumentID == "doc-1" {
			t.Errorf("deleted document still surfaces in search: %s", m.ChunkID)
		}
	}
}

func TestCorpusService_Stats(t *testing.T) {
	f := newCorpusFixture(0)

	if _, err := f.svc.UpsertDocument(context.Background(), equityDoc("fw-1", domain.KindFramework), testText); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.UpsertDocument(context.Background(), equityDoc("art-1", domain.KindArtifact), "One short artifact sentence."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.FrameworkDocuments != 1 || stats.ArtifactDocuments != 1 {
		t.Errorf("expected 1 framework + 1 artifact, got %d + %d", stats.FrameworkDocuments, stats.ArtifactDocuments)
	}
	if stats.Chunks == 0 || stats.IndexedVectors != stats.Chunks {
		t.Errorf("expected all %d chunks indexed, got %d", stats.Chunks, stats.IndexedVectors)
	}
}

func TestCorpusService_VerifyConsistency(t *testing.T) {
	f := newCorpusFixture(0)

	if _, err := f.svc.UpsertDocument(context.Background(), equityDoc("doc-1", domain.KindArtifact), testText); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.VerifyConsistency(context.Background()); err != nil {
		t.Fatalf("fresh corpus should be consistent, got %v", err)
	}

	// Inject a stray vector behind the service's back
	_ = f.index.Add(context.Background(), &domain.Chunk{
		ID:         "stray",
		DocumentID: "ghost",
		Embedding:  []float32{1, 2, 3},
	})
	if err := f.svc.VerifyConsistency(context.Background()); !errors.Is(err, domain.ErrIndexInconsistency) {
		t.Errorf("expected ErrIndexInconsistency, got %v", err)
	}
}

func TestCorpusService_ListDocuments(t *testing.T) {
	f := newCorpusFixture(0)

	if _, err := f.svc.UpsertDocument(context.Background(), equityDoc("fw-1", domain.KindFramework), testText); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.UpsertDocument(context.Background(), equityDoc("art-1", domain.KindArtifact), testText); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all, err := f.svc.ListDocuments(context.Background(), "")
	if err != nil || len(all) != 2 {
		t.Errorf("expected 2 documents, got %d (err %v)", len(all), err)
	}
	frameworks, err := f.svc.ListDocuments(context.Background(), domain.KindFramework)
	if err != nil || len(frameworks) != 1 {
		t.Errorf("expected 1 framework document, got %d (err %v)", len(frameworks), err)
	}
	if _, err := f.svc.ListDocuments(context.Background(), "banana"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown kind, got %v", err)
	}
}
