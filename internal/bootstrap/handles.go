package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/panelscope/internal/config"
	"github.com/kailas-cloud/panelscope/internal/db/relational"
	dbValkey "github.com/kailas-cloud/panelscope/internal/db/valkey"
	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/schema"
	"github.com/kailas-cloud/panelscope/internal/metrics"
	budgetrepo "github.com/kailas-cloud/panelscope/internal/repository/budget"
	"github.com/kailas-cloud/panelscope/internal/repository/embcache"
	"github.com/kailas-cloud/panelscope/internal/repository/panel"
	"github.com/kailas-cloud/panelscope/internal/repository/survey"
	openaiEmb "github.com/kailas-cloud/panelscope/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/panelscope/internal/usecase/embedding"
	"github.com/kailas-cloud/panelscope/internal/usecase/engine"
)

// cacheStore is what the embedding cache needs from the vector store.
type cacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// HandlesFactory opens a fresh relational pool, vector store and embedder chain
// on every call. Configuration is read once; only connections are renewed.
func HandlesFactory(cfg config.Config, budget *embeddinguc.BudgetTracker, base domain.Embedder, logger *zap.Logger) engine.Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) (*engine.Handles, error) {
		rel, err := relational.Open(relational.Config{
			Driver:           cfg.Relational.Driver,
			DSN:              cfg.Relational.ConnString(),
			MaxOpenConns:     cfg.Relational.MaxOpenConns,
			MaxIdleConns:     cfg.Relational.MaxIdleConns,
			ConnMaxLifetime:  cfg.Relational.ConnMaxLifetime(),
			StatementTimeout: cfg.Relational.StatementTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("open relational store: %w", err)
		}
		readiness := time.Duration(cfg.Relational.ReadinessTimeoutSec) * time.Second
		if err := rel.WaitForReady(ctx, readiness); err != nil {
			rel.Close()
			return nil, fmt.Errorf("relational store not ready: %w", err)
		}

		panels, err := panel.New(rel, cfg.Relational.Table, cfg.Relational.IDColumn)
		if err != nil {
			rel.Close()
			return nil, fmt.Errorf("panel repository: %w", err)
		}
		panels = panels.WithChunk(cfg.Relational.FetchChunk)

		vec, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Vector.Addrs,
			Username: cfg.Vector.Username,
			Password: cfg.Vector.Password,
		})
		if err != nil {
			rel.Close()
			return nil, fmt.Errorf("open vector store: %w", err)
		}
		closeAll := func() {
			vec.Close()
			rel.Close()
		}
		readiness = time.Duration(cfg.Vector.ReadinessTimeoutSec) * time.Second
		if err := vec.WaitForReady(ctx, readiness); err != nil {
			closeAll()
			return nil, fmt.Errorf("vector store not ready: %w", err)
		}

		answers := survey.New(vec, cfg.Vector.KeyPrefix, map[string]string{
			schema.CollectionSurvey:   cfg.Vector.Collections.Survey,
			schema.CollectionFreeText: cfg.Vector.Collections.FreeText,
		}).WithHNSW(survey.HNSWConfig{
			M:              cfg.Vector.HNSWM,
			EFConstruction: cfg.Vector.HNSWEFConstruct,
		})
		if cfg.Vector.EnsureIndexes {
			for _, c := range []string{schema.CollectionSurvey, schema.CollectionFreeText} {
				if err := answers.EnsureIndex(ctx, c, cfg.Embedding.Dimensions); err != nil {
					closeAll()
					return nil, fmt.Errorf("ensure %s index: %w", c, err)
				}
			}
		}

		logger.Info("Engine stores opened",
			zap.String("relational_driver", cfg.Relational.Driver),
			zap.String("survey_collection", cfg.Vector.Collections.Survey),
			zap.String("freetext_collection", cfg.Vector.Collections.FreeText),
		)

		h := &engine.Handles{
			Panels:     panels,
			Answers:    answers,
			Embedder:   BuildEmbedder(cfg.Embedding, cfg.Vector.KeyPrefix, base, vec, budget, logger),
			Relational: rel,
			Vector:     vec,
			Close:      closeAll,
		}
		if budget != nil {
			// Counters follow the published store, never one still being built.
			h.OnPublish = func(ctx context.Context) {
				budget.WithStore(ctx, budgetrepo.New(vec, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
			}
		}
		return h, nil
	}
}

// BuildEmbedder assembles the decorator chain: provider -> cache -> budget guard -> query instruction.
// A nil base means the OpenAI-compatible provider from cfg. A nil cache store disables caching.
func BuildEmbedder(
	cfg config.EmbeddingConfig,
	prefix string,
	base domain.Embedder,
	cache cacheStore,
	budget *embeddinguc.BudgetTracker,
	logger *zap.Logger,
) domain.Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if base == nil {
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			User:       cfg.User,
			Provider:   cfg.Provider,
			MaxBatch:   cfg.MaxBatch,
			Logger:     logger,
		})
	}

	embedder := base
	if cfg.Cache.Enabled && cache != nil {
		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		embedder = embcache.New(embedder, cache, prefix, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	// A typed nil pointer must not reach the guard as a non-nil interface.
	var guard embeddinguc.Budget
	if budget != nil {
		guard = budget
	}
	embedder = embeddinguc.NewGuardedEmbedder(embedder, cfg.Provider, cfg.Model, guard, logger)

	// Outermost, so the cache key includes the instruction.
	if cfg.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.QueryInstruction)
	}
	return embedder
}
