package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/audita-core/internal/core/domain"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven"
)

// Embedder wraps the embedding service with the corpus build policy:
// chunks are embedded concurrently up to a configured limit, calls are
// rate limited, and transient failures retry with exponential backoff.
// Results are reassembled in document order regardless of completion order.
type Embedder struct {
	embedding   driven.EmbeddingService
	limiter     *rate.Limiter
	concurrency int
	maxRetries  int
	logger      *slog.Logger
}

// EmbedderConfig holds dependencies and tuning for Embedder.
type EmbedderConfig struct {
	Embedding driven.EmbeddingService

	// Concurrency is the maximum number of in-flight embedding calls
	Concurrency int

	// MaxRetries bounds retries for transient failures per chunk
	MaxRetries int

	// RequestsPerSecond rate-limits embedding calls; 0 means unlimited
	RequestsPerSecond float64

	Logger *slog.Logger
}

// NewEmbedder creates a new Embedder.
func NewEmbedder(cfg EmbedderConfig) *Embedder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Embedder{
		embedding:   cfg.Embedding,
		limiter:     limiter,
		concurrency: concurrency,
		maxRetries:  maxRetries,
		logger:      logger,
	}
}

// Dimensions reports the embedding dimension of the backing service
func (e *Embedder) Dimensions() int {
	return e.embedding.Dimensions()
}

// EmbedChunks fills in the Embedding field of each chunk, in place.
// Per-chunk failures are isolated: chunks whose retry budget is exhausted
// are reported as ChunkEmbeddingError and left without an embedding.
// The returned error is non-nil only for cancellation.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []*domain.Chunk) ([]*domain.ChunkEmbeddingError, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	failures := make([]*domain.ChunkEmbeddingError, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			vec, err := e.embedWithRetry(gctx, chunk.Content)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failures[i] = &domain.ChunkEmbeddingError{
					ChunkID:  chunk.ID,
					Position: chunk.Position,
					Err:      err,
				}
				return nil
			}
			chunk.Embedding = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failed []*domain.ChunkEmbeddingError
	for _, f := range failures {
		if f != nil {
			failed = append(failed, f)
		}
	}
	return failed, nil
}

// EmbedText embeds a single text with the same retry policy.
// Used for exemplar and query embeddings.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.embedWithRetry(ctx, text)
}

func (e *Embedder) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	backoff := 100 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vecs, err := e.embedding.Embed(ctx, []string{text})
		if err == nil {
			if len(vecs) != 1 {
				return nil, fmt.Errorf("embedding service returned %d vectors for 1 text", len(vecs))
			}
			return vecs[0], nil
		}

		if !domain.IsTransientEmbeddingError(err) {
			return nil, err
		}
		lastErr = err

		if attempt < e.maxRetries {
			e.logger.Warn("embedding unavailable, retrying",
				"attempt", attempt+1,
				"backoff", backoff.String(),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}
