package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/audita-core/internal/core/domain"
)

// MockDocumentStore is a mock implementation of DocumentStore for testing
type MockDocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*domain.SourceDocument
	chunks    *MockChunkStore
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		documents: make(map[string]*domain.SourceDocument),
	}
}

// WithChunkStore binds the chunk side of the corpus store so
// SaveWithChunks mirrors the real composite write.
func (m *MockDocumentStore) WithChunkStore(chunks *MockChunkStore) *MockDocumentStore {
	m.chunks = chunks
	return m
}

func (m *MockDocumentStore) Save(ctx context.Context, doc *domain.SourceDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.ID] = doc
	return nil
}

// SaveWithChunks saves the document and replaces its chunks as one
// operation: a failed chunk replace leaves the document unsaved.
func (m *MockDocumentStore) SaveWithChunks(ctx context.Context, doc *domain.SourceDocument, chunks []*domain.Chunk) error {
	if m.chunks != nil {
		if err := m.chunks.ReplaceForDocument(ctx, doc.ID, chunks); err != nil {
			return err
		}
	}
	return m.Save(ctx, doc)
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.SourceDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (m *MockDocumentStore) ListByKind(ctx context.Context, kind domain.DocumentKind) ([]*domain.SourceDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var docs []*domain.SourceDocument
	for _, doc := range m.documents {
		if doc.Kind == kind {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *MockDocumentStore) List(ctx context.Context) ([]*domain.SourceDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var docs []*domain.SourceDocument
	for _, doc := range m.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.documents, id)
	return nil
}

func (m *MockDocumentStore) Count(ctx context.Context) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var framework, artifact int
	for _, doc := range m.documents {
		switch doc.Kind {
		case domain.KindFramework:
			framework++
		case domain.KindArtifact:
			artifact++
		}
	}
	return framework, artifact, nil
}

// MockChunkStore is a mock implementation of ChunkStore for testing
type MockChunkStore struct {
	mu         sync.RWMutex
	byDoc      map[string][]*domain.Chunk
	ordered    []*domain.Chunk // insertion order, for ListEmbedded
	replaceErr error
}

// NewMockChunkStore creates a new MockChunkStore
func NewMockChunkStore() *MockChunkStore {
	return &MockChunkStore{
		byDoc: make(map[string][]*domain.Chunk),
	}
}

// FailReplace makes the next ReplaceForDocument call fail, leaving prior
// state intact. Used to verify upsert atomicity.
func (m *MockChunkStore) FailReplace(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceErr = err
}

func (m *MockChunkStore) ReplaceForDocument(ctx context.Context, documentID string, chunks []*domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.replaceErr != nil {
		err := m.replaceErr
		m.replaceErr = nil
		return err
	}

	// Drop prior chunks from the insertion-order view
	var kept []*domain.Chunk
	for _, c := range m.ordered {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	m.ordered = append(kept, chunks...)
	m.byDoc[documentID] = chunks
	return nil
}

func (m *MockChunkStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunks := m.byDoc[documentID]
	out := make([]*domain.Chunk, len(chunks))
	copy(out, chunks)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *MockChunkStore) ListEmbedded(ctx context.Context) ([]*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Chunk
	for _, c := range m.ordered {
		if len(c.Embedding) > 0 {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*domain.Chunk
	for _, c := range m.ordered {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	m.ordered = kept
	delete(m.byDoc, documentID)
	return nil
}

func (m *MockChunkStore) Count(ctx context.Context) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var untagged int
	for _, c := range m.ordered {
		if len(c.Categories) == 0 {
			untagged++
		}
	}
	return len(m.ordered), untagged, nil
}

// MockReportStore is a mock implementation of ReportStore for testing
type MockReportStore struct {
	mu      sync.RWMutex
	reports map[string]*domain.AuditReport
}

// NewMockReportStore creates a new MockReportStore
func NewMockReportStore() *MockReportStore {
	return &MockReportStore{
		reports: make(map[string]*domain.AuditReport),
	}
}

func (m *MockReportStore) Save(ctx context.Context, report *domain.AuditReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.DocumentID] = report
	return nil
}

func (m *MockReportStore) Get(ctx context.Context, documentID string) (*domain.AuditReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	report, ok := m.reports[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return report, nil
}

func (m *MockReportStore) List(ctx context.Context) ([]*domain.AuditReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AuditReport
	for _, r := range m.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

func (m *MockReportStore) Delete(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[documentID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.reports, documentID)
	return nil
}
