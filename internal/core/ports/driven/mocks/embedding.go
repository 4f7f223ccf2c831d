package mocks

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/custodia-labs/audita-core/internal/core/domain"
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// By default it produces deterministic pseudo-random vectors from a text hash;
// tests that need controlled similarities can pin exact vectors per text.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string
	fixed      map[string][]float32
	calls      int

	// transientFailures makes the next N calls fail with ErrEmbeddingUnavailable
	transientFailures int

	// permanentErr, when set, fails every call with a non-retryable error
	permanentErr error
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 8,
		model:      "mock-embedding-model",
		fixed:      make(map[string][]float32),
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.permanentErr != nil {
		return nil, m.permanentErr
	}
	if m.transientFailures > 0 {
		m.transientFailures--
		return nil, domain.ErrEmbeddingUnavailable
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.embeddingFor(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := m.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *MockEmbeddingService) Dimensions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

func (m *MockEmbeddingService) embeddingFor(text string) []float32 {
	if vec, ok := m.fixed[text]; ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out
	}

	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		// Deterministic pseudo-random values
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000)/1000.0 + 0.001
	}
	return embedding
}

// Helper methods for testing

// SetFixed pins the exact vector returned for a text
func (m *MockEmbeddingService) SetFixed(text string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed[text] = vec
	if len(vec) > 0 {
		m.dimensions = len(vec)
	}
}

// FailTransient makes the next n calls fail with ErrEmbeddingUnavailable
func (m *MockEmbeddingService) FailTransient(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transientFailures = n
}

// FailPermanent makes every call fail with the given error
func (m *MockEmbeddingService) FailPermanent(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permanentErr = err
}

// Calls returns how many Embed calls were made
func (m *MockEmbeddingService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dim
}
