package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/metrics"
)

// Budget is the consumer interface of the token budget.
type Budget interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// GuardedEmbedder checks the budget before each call and records the tokens spent.
// Transport metrics are recorded by the provider itself.
type GuardedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	budget   Budget
	logger   *zap.Logger
}

var (
	_ domain.Embedder      = (*GuardedEmbedder)(nil)
	_ domain.BatchEmbedder = (*GuardedEmbedder)(nil)
	_ domain.HealthChecker = (*GuardedEmbedder)(nil)
)

// NewGuardedEmbedder wraps inner. A nil budget only adds logging.
func NewGuardedEmbedder(
	inner domain.Embedder, provider, model string,
	budget Budget, logger *zap.Logger,
) *GuardedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardedEmbedder{inner: inner, provider: provider, model: model, budget: budget, logger: logger}
}

// Embed checks the budget, delegates, and records usage.
func (g *GuardedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := g.check(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	res, err := g.inner.Embed(ctx, text)
	if err != nil {
		g.logger.Error("Embedding request failed",
			zap.String("provider", g.provider),
			zap.String("model", g.model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	g.record(res.TotalTokens)
	g.logger.Debug("Embedding request completed",
		zap.String("provider", g.provider),
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed checks the budget once for the whole batch.
func (g *GuardedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	if err := g.check(ctx, len(texts)); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	start := time.Now()
	var (
		res domain.BatchEmbeddingResult
		err error
	)
	if be, ok := g.inner.(domain.BatchEmbedder); ok {
		res, err = be.BatchEmbed(ctx, texts)
	} else {
		res, err = g.embedEach(ctx, texts)
	}
	if err != nil {
		g.logger.Error("Batch embedding request failed",
			zap.String("provider", g.provider),
			zap.String("model", g.model),
			zap.Int("batch_size", len(texts)),
			zap.Error(err),
		)
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}

	g.record(res.TotalTokens)
	g.logger.Debug("Batch embedding completed",
		zap.String("provider", g.provider),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

func (g *GuardedEmbedder) embedEach(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		r, err := g.inner.Embed(ctx, t)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("embed [%d]: %w", i, err)
		}
		out.Embeddings[i] = r.Embedding
		out.PromptTokens += r.PromptTokens
		out.TotalTokens += r.TotalTokens
	}
	return out, nil
}

// HealthCheck delegates to the provider when it supports health checks.
func (g *GuardedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := g.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (g *GuardedEmbedder) check(ctx context.Context, n int) error {
	if g.budget == nil {
		return nil
	}
	if err := g.budget.Check(ctx); err != nil {
		g.logger.Error("Budget exceeded",
			zap.String("provider", g.provider),
			zap.String("model", g.model),
			zap.Int("texts", n),
			zap.Error(err),
		)
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (g *GuardedEmbedder) record(tokens int) {
	if g.budget == nil || tokens <= 0 {
		return
	}
	g.budget.Record(int64(tokens))
	remaining := metrics.EmbeddingBudgetTokensRemaining
	remaining.WithLabelValues(g.provider, "daily").Set(float64(g.budget.RemainingDaily()))
	remaining.WithLabelValues(g.provider, "monthly").Set(float64(g.budget.RemainingMonthly()))
}
