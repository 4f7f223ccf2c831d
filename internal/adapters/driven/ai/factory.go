// Package ai provides embedding service adapters for OpenAI-compatible APIs.
package ai

import (
	"fmt"

	"github.com/custodia-labs/audita-core/internal/core/ports/driven"
)

// EmbeddingConfig holds configuration for creating an embedding service
type EmbeddingConfig struct {
	// Provider selects the adapter. Currently "openai", which also covers
	// any OpenAI-compatible endpoint (Ollama, vLLM, LM Studio) via BaseURL.
	Provider string

	APIKey  string
	Model   string
	BaseURL string
}

// NewEmbeddingService creates an embedding service from config
func NewEmbeddingService(cfg EmbeddingConfig) (driven.EmbeddingService, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "openai":
		return NewOpenAIEmbedding(cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}
