// Package openai embeds query and negative-condition texts through an OpenAI-compatible API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/metrics"
)

// Embedder is an embedding provider using the OpenAI-compatible API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	maxBatch   int
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Provider   string
	// MaxBatch caps texts per API call; zero means DefaultMaxBatch.
	MaxBatch int
	Logger   *zap.Logger
}

// DefaultMaxBatch is the batch size used when Config.MaxBatch is zero.
const DefaultMaxBatch = 256

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		maxBatch:   maxBatch,
		logger:     logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.create(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder. Vectors come back in input order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for start := 0; start < len(texts); start += e.maxBatch {
		end := min(start+e.maxBatch, len(texts))
		res, err := e.create(ctx, texts[start:end])
		if err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

func (e *Embedder) create(ctx context.Context, input []string) (domain.BatchEmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	model := string(e.model)
	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, "api_error").Inc()
		e.logger.Warn("Embedding request failed",
			zap.Int("texts", len(input)), zap.Duration("duration", duration), zap.Error(err))
		return domain.BatchEmbeddingResult{}, parseAPIError(err)
	}
	if len(resp.Data) != len(input) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, "count_mismatch").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf("got %d embeddings for %d texts: %w",
			len(resp.Data), len(input), domain.ErrEmbeddingFailure)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vecs := make([][]float32, len(data))
	for i := range data {
		vecs[i] = data[i].Embedding
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   vecs,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a readable error from the API response.
// All errors wrap domain.ErrEmbeddingFailure.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingFailure

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("embedding request: %w: %w", wrap, err)
	}
	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
