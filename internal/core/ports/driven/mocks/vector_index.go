package mocks

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/audita-core/internal/core/domain"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven"
)

// MockVectorIndex is an in-memory vector index for testing.
// It implements exact cosine search so service tests exercise real
// ranking semantics without a backing store.
type MockVectorIndex struct {
	mu      sync.RWMutex
	entries []*indexEntry
	byID    map[string]*indexEntry
	nextOrd int
}

type indexEntry struct {
	chunk *domain.Chunk
	order int
}

// NewMockVectorIndex creates a new MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{
		byID: make(map[string]*indexEntry),
	}
}

func (m *MockVectorIndex) Add(ctx context.Context, chunk *domain.Chunk) error {
	if len(chunk.Embedding) == 0 {
		return domain.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byID[chunk.ID]; ok {
		existing.chunk = chunk
		return nil
	}
	e := &indexEntry{chunk: chunk, order: m.nextOrd}
	m.nextOrd++
	m.entries = append(m.entries, e)
	m.byID[chunk.ID] = e
	return nil
}

func (m *MockVectorIndex) RemoveDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*indexEntry
	for _, e := range m.entries {
		if e.chunk.DocumentID == documentID {
			delete(m.byID, e.chunk.ID)
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return nil
}

func (m *MockVectorIndex) ReplaceDocument(ctx context.Context, documentID string, chunks []*domain.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return domain.ErrInvalidInput
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []*indexEntry
	for _, e := range m.entries {
		if e.chunk.DocumentID == documentID {
			delete(m.byID, e.chunk.ID)
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept

	for _, c := range chunks {
		if existing, ok := m.byID[c.ID]; ok {
			existing.chunk = c
			continue
		}
		e := &indexEntry{chunk: c, order: m.nextOrd}
		m.nextOrd++
		m.entries = append(m.entries, e)
		m.byID[c.ID] = e
	}
	return nil
}

func (m *MockVectorIndex) Search(ctx context.Context, embedding []float32, k int, filter driven.SearchFilter) ([]driven.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		entry *indexEntry
		sim   float64
	}
	var candidates []scored
	for _, e := range m.entries {
		if filter.Kind != "" && e.chunk.Kind != filter.Kind {
			continue
		}
		if filter.Category != "" && !e.chunk.HasCategory(filter.Category) {
			continue
		}
		candidates = append(candidates, scored{entry: e, sim: mockCosine(embedding, e.chunk.Embedding)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		return candidates[i].entry.order < candidates[j].entry.order
	})

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	matches := make([]driven.Match, len(candidates))
	for i, c := range candidates {
		matches[i] = driven.Match{
			ChunkID:    c.entry.chunk.ID,
			DocumentID: c.entry.chunk.DocumentID,
			Similarity: c.sim,
		}
	}
	return matches, nil
}

func (m *MockVectorIndex) Rebuild(ctx context.Context) error {
	return nil
}

func (m *MockVectorIndex) Size(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func mockCosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
