package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/audita-core/internal/core/domain"
)

// Tagger assigns governance categories to chunks.
// Explicit category metadata on the source document wins; otherwise the
// chunk vector is compared against each category's exemplar centroid and
// every category above the threshold is assigned. A chunk may carry
// multiple categories, or none.
type Tagger struct {
	embedder  *Embedder
	taxonomy  domain.Taxonomy
	threshold float64
	logger    *slog.Logger

	mu        sync.Mutex
	centroids map[domain.CategoryID][]float32
}

// TaggerConfig holds dependencies for Tagger.
type TaggerConfig struct {
	Embedder *Embedder
	Taxonomy domain.Taxonomy

	// Threshold is the minimum exemplar-centroid cosine similarity for a
	// zero-shot category assignment
	Threshold float64

	Logger *slog.Logger
}

// NewTagger creates a new Tagger.
func NewTagger(cfg TaggerConfig) *Tagger {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tagger{
		embedder:  cfg.Embedder,
		taxonomy:  cfg.Taxonomy,
		threshold: cfg.Threshold,
		logger:    logger,
	}
}

// Tag returns the categories for a chunk. Declared document metadata is
// used verbatim when present; every declared category must exist in the
// taxonomy. Without declarations, a chunk without an embedding stays
// untagged.
func (t *Tagger) Tag(ctx context.Context, doc *domain.SourceDocument, chunk *domain.Chunk) ([]domain.CategoryID, error) {
	if len(doc.DeclaredCategories) > 0 {
		for _, id := range doc.DeclaredCategories {
			if !t.taxonomy.Contains(id) {
				return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCategory, id)
			}
		}
		out := make([]domain.CategoryID, len(doc.DeclaredCategories))
		copy(out, doc.DeclaredCategories)
		return out, nil
	}

	if len(chunk.Embedding) == 0 {
		return nil, nil
	}

	centroids, err := t.categoryCentroids(ctx)
	if err != nil {
		return nil, err
	}

	var tags []domain.CategoryID
	for id, centroid := range centroids {
		if cosineSimilarity(chunk.Embedding, centroid) >= t.threshold {
			tags = append(tags, id)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags, nil
}

// categoryCentroids lazily embeds the taxonomy exemplars and caches the
// per-category mean vector.
func (t *Tagger) categoryCentroids(ctx context.Context) (map[domain.CategoryID][]float32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.centroids != nil {
		return t.centroids, nil
	}

	centroids := make(map[domain.CategoryID][]float32, len(t.taxonomy))
	for _, id := range t.taxonomy.IDs() {
		cat := t.taxonomy[id]

		var sum []float32
		for _, exemplar := range cat.Exemplars {
			vec, err := t.embedder.EmbedText(ctx, exemplar)
			if err != nil {
				return nil, fmt.Errorf("failed to embed exemplar for category %s: %w", id, err)
			}
			if sum == nil {
				sum = make([]float32, len(vec))
			}
			if len(vec) != len(sum) {
				return nil, fmt.Errorf("%w: exemplar for category %s", domain.ErrDimensionMismatch, id)
			}
			for i, v := range vec {
				sum[i] += v
			}
		}
		n := float32(len(cat.Exemplars))
		for i := range sum {
			sum[i] /= n
		}
		centroids[id] = sum
	}

	t.centroids = centroids
	t.logger.Info("category exemplar centroids computed", "categories", len(centroids))
	return centroids, nil
}

// cosineSimilarity returns the cosine of two vectors, 0 for degenerate input
func cosineSimilarity(a, b []float32) float64 {
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
