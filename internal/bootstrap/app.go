// Package bootstrap wires configuration into a running engine: stores,
// embedder chain, retrieval and insight services.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/panelscope/internal/config"
	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/schema"
	embeddinguc "github.com/kailas-cloud/panelscope/internal/usecase/embedding"
	"github.com/kailas-cloud/panelscope/internal/usecase/engine"
	healthuc "github.com/kailas-cloud/panelscope/internal/usecase/health"
	"github.com/kailas-cloud/panelscope/internal/usecase/insight"
	"github.com/kailas-cloud/panelscope/internal/usecase/retrieval"
	usageuc "github.com/kailas-cloud/panelscope/internal/usecase/usage"
	"github.com/kailas-cloud/panelscope/internal/worker"
)

// App is the assembled engine.
type App struct {
	Catalog   *schema.Catalog
	Manager   *engine.Manager
	Retrieval *retrieval.Service
	Insights  *insight.Engine
	Health    *healthuc.Service
	Usage     *usageuc.Service
	Budget    *embeddinguc.BudgetTracker // nil without limits

	pool *worker.Pool
}

// Option customizes Build.
type Option func(*options)

type options struct {
	catalog  *schema.Catalog
	embedder domain.Embedder
}

// WithCatalog replaces the default field catalog.
func WithCatalog(c *schema.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithEmbedder replaces the OpenAI-compatible provider. Cache, budget and
// query instruction still wrap it.
func WithEmbedder(e domain.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// Build opens the first handle generation and the services around it.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.catalog == nil {
		o.catalog = schema.Default()
	}

	pool, err := worker.New(cfg.Workers.Size)
	if err != nil {
		return nil, fmt.Errorf("worker pool: %w", err)
	}

	budget := NewBudget(cfg, logger)

	mgr, err := engine.New(ctx, HandlesFactory(cfg, budget, o.embedder, logger), logger)
	if err != nil {
		_ = pool.Close(time.Second)
		return nil, fmt.Errorf("build engine handles: %w", err)
	}

	app := &App{
		Catalog: o.catalog,
		Manager: mgr,
		Retrieval: retrieval.New(o.catalog, mgr.Acquirer(), pool, retrieval.Config{
			Reranker: retrieval.RerankerConfig{
				SearchK:       cfg.Retrieval.SearchK,
				MinSimilarity: cfg.Retrieval.MinSimilarity,
				ScopeChunk:    cfg.Retrieval.ScopeChunk,
				Parallelism:   cfg.Retrieval.ScopeParallelism,
			},
			Assembler: retrieval.AssemblerConfig{
				MaxLimit:   cfg.Retrieval.MaxLimit,
				MaxColumns: cfg.Retrieval.MaxColumns,
			},
			NegativeThreshold: cfg.Retrieval.NegativeThreshold,
		}),
		Insights: insight.New(o.catalog, pool, insight.Config{
			SkewThreshold: cfg.Insights.SkewThreshold,
			DiscoveryLow:  cfg.Insights.DiscoveryLow,
			DiscoveryHigh: cfg.Insights.DiscoveryHigh,
			MinCharts:     cfg.Insights.MinCharts,
			DerivedRatio:  cfg.Insights.DerivedRatio,
		}),
		Health: healthuc.New(
			healthuc.PingFunc(mgr.PingRelational),
			healthuc.PingFunc(mgr.PingVector),
			mgr,
		),
		Budget: budget,
		pool:   pool,
	}
	if budget != nil {
		app.Usage = usageuc.New(cfg.Embedding.Provider, budget)
	} else {
		app.Usage = usageuc.New(cfg.Embedding.Provider, nil)
	}
	return app, nil
}

// NewBudget returns a token budget tracker, or nil when no limit is configured.
// The tracker outlives handle generations; each generation re-attaches its store.
func NewBudget(cfg config.Config, logger *zap.Logger) *embeddinguc.BudgetTracker {
	b := cfg.Embedding.Budget
	if !b.Enabled() {
		return nil
	}
	return embeddinguc.NewBudgetTracker(
		cfg.Embedding.Provider, cfg.Vector.KeyPrefix,
		b.DailyTokenLimit, b.MonthlyTokenLimit,
		embeddinguc.ParseBudgetAction(b.Action), logger,
	)
}

// Close releases the handles and drains the worker pool.
func (a *App) Close(timeout time.Duration) error {
	a.Manager.Close()
	return a.pool.Close(timeout)
}
