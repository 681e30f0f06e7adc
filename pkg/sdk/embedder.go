package panelscope

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/panelscope/internal/domain"
)

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// embedderAdapter wraps a public Embedder to satisfy domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
