package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries one embedding vector and token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries embedding vectors in input order.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// EmbedAll vectorizes texts, using a native batch call when the embedder supports it.
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if be, ok := e.(BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("batch embed: %w", err)
		}
		if len(res.Embeddings) != len(texts) {
			return nil, fmt.Errorf("batch embed: got %d vectors for %d texts: %w",
				len(res.Embeddings), len(texts), ErrEmbeddingFailure)
		}
		return res.Embeddings, nil
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed [%d]: %w", i, err)
		}
		out[i] = res.Embedding
	}
	return out, nil
}

// InstructionEmbedder prepends a fixed instruction before embedding (query-side prompts).
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends the instruction and delegates.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return result, nil
}

// BatchEmbed prepends the instruction to every text.
func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.instruction + t
	}
	vecs, err := EmbedAll(ctx, e.inner, prefixed)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("instruction batch embed: %w", err)
	}
	return BatchEmbeddingResult{Embeddings: vecs}, nil
}

// HealthCheck proxies to the inner embedder when it supports health checks.
func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}
