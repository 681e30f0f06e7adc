package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/panelscope/internal/db"
	"github.com/kailas-cloud/panelscope/internal/domain"
)

type mockEmbedder struct {
	result     domain.EmbeddingResult
	err        error
	batchErr   error
	batchCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = m.result.Embedding
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// singleEmbedder has no batch support.
type singleEmbedder struct {
	calls int
}

func (m *singleEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 2}, nil
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedEmbedder(t *testing.T, inner domain.Embedder) (*CachedEmbedder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, "ps:", time.Hour, nil, zap.NewNop())
	return ce, ms
}
