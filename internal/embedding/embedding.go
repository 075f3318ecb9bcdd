// Package embedding turns text into vectors through a hosted embedding API.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/job-matcher/internal/config"
)

// ErrNoInput is returned when Embed is called without texts.
var ErrNoInput = errors.New("no texts to embed")

// Embedder embeds a batch of texts in one call. The i-th vector belongs to
// the i-th text and every vector has Dimensions() components.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// New builds the embedder selected by cfg.
func New(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAI(OpenAIOptions{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case "gemini":
		return NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// checkBatch verifies a provider answered with one vector of the expected
// size per input.
func checkBatch(vectors [][]float32, n, dims int) error {
	if len(vectors) != n {
		return fmt.Errorf("expected %d embeddings, got %d", n, len(vectors))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("embedding %d is missing", i)
		}
		if dims > 0 && len(v) != dims {
			return fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(v), dims)
		}
	}
	return nil
}
