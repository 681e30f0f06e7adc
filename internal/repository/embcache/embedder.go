// Package embcache caches query embeddings in the key-value store.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/panelscope/internal/db"
	"github.com/kailas-cloud/panelscope/internal/domain"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder caches embeddings under prefix+sha256(text).
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	prefix     string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. cacheTotal has the label "result" (hit/miss) and may be nil.
func New(
	inner domain.Embedder,
	s store,
	prefix string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		prefix:     prefix + "emb_cache:",
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hits report zero tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.putToCache(ctx, key, result.Embedding)
	return result, nil
}

// BatchEmbed serves hits from the cache and sends only the misses to the inner embedder.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}

	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		keys[i] = c.cacheKey(t)
		if vec, ok := c.getFromCache(ctx, keys[i]); ok {
			c.incCache("hit")
			out.Embeddings[i] = vec
			continue
		}
		c.incCache("miss")
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	var vecs [][]float32
	if be, ok := c.inner.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, missTexts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		if len(res.Embeddings) != len(missTexts) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: got %d vectors for %d texts: %w",
				len(res.Embeddings), len(missTexts), domain.ErrEmbeddingFailure)
		}
		vecs = res.Embeddings
		out.PromptTokens, out.TotalTokens = res.PromptTokens, res.TotalTokens
	} else {
		for _, t := range missTexts {
			res, err := c.inner.Embed(ctx, t)
			if err != nil {
				return domain.BatchEmbeddingResult{}, fmt.Errorf("embed text: %w", err)
			}
			vecs = append(vecs, res.Embedding)
			out.PromptTokens += res.PromptTokens
			out.TotalTokens += res.TotalTokens
		}
	}

	for j, i := range missIdx {
		out.Embeddings[i] = vecs[j]
		c.putToCache(ctx, keys[i], vecs[j])
	}
	return out, nil
}

// HealthCheck proxies to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) putToCache(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, vectorToCacheBytes(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
