package driven

import (
	"context"
)

// EmbeddingService generates text embeddings.
// The core contains no embedding math; this is the capability boundary.
// Implementations must be deterministic for identical text and a pinned
// model version, and must classify failures: transient failures are
// reported as (or wrap) domain.ErrEmbeddingUnavailable so the caller's
// retry policy applies, anything else is treated as permanent.
type EmbeddingService interface {
	// Embed generates embeddings for multiple texts, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a search query.
	// May use different model/parameters optimized for queries.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions returns the embedding dimension size.
	// Fixed for the lifetime of one index.
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}
