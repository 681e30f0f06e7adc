package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/candidate"
	"github.com/kailas-cloud/panelscope/internal/domain/schema"
	"github.com/kailas-cloud/panelscope/internal/repository/survey"
)

// RerankerConfig bounds vector searches.
type RerankerConfig struct {
	// SearchK is the KNN fan-out of one search.
	SearchK int
	// MinSimilarity drops weaker matches.
	MinSimilarity float64
	// ScopeChunk is the number of identifiers per scoped search.
	ScopeChunk int
	// Parallelism bounds concurrent chunk searches.
	Parallelism int
}

// Reranker scores panels by similarity of their answers to condition texts.
type Reranker struct {
	catalog *schema.Catalog
	cfg     RerankerConfig
}

// NewReranker creates a reranker.
func NewReranker(catalog *schema.Catalog, cfg RerankerConfig) *Reranker {
	if cfg.ScopeChunk <= 0 {
		cfg.ScopeChunk = 500
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.SearchK <= 0 {
		cfg.SearchK = 5000
	}
	return &Reranker{catalog: catalog, cfg: cfg}
}

// searchTarget picks the collection to search and the survey question to restrict to.
func (r *Reranker) searchTarget(targetField string) (collection, field string) {
	if f, ok := r.catalog.Field(targetField); ok && f.IsVector() && f.Collection == schema.CollectionSurvey {
		return schema.CollectionSurvey, f.Name
	}
	return schema.CollectionFreeText, ""
}

// Rerank embeds each text, searches within scope and intersects the per-text
// results. An explicitly empty scope returns an empty set without searching.
func (r *Reranker) Rerank(
	ctx context.Context, st Stores, texts []string, targetField string, scope candidate.Set, k int,
) (candidate.Set, error) {
	if scope.IsEmpty() || len(texts) == 0 {
		return candidate.FromIDs(nil), nil
	}

	vectors, err := domain.EmbedAll(ctx, st.Embedder, texts)
	if err != nil {
		return candidate.Set{}, fmt.Errorf("embed conditions: %w", asEmbeddingFailure(err))
	}

	collection, field := r.searchTarget(targetField)
	result := scope
	for i, vec := range vectors {
		matched, err := r.search(ctx, st.Answers, collection, field, vec, scope)
		if err != nil {
			return candidate.Set{}, fmt.Errorf("search condition %d: %w", i, err)
		}
		result = candidate.Intersect(result, matched)
		if result.IsEmpty() {
			break
		}
	}
	return result.Truncate(k), nil
}

func (r *Reranker) search(
	ctx context.Context, answers AnswerRepository, collection, field string, vec []float32, scope candidate.Set,
) (candidate.Set, error) {
	if scope.IsUnconstrained() {
		hits, err := answers.Search(ctx, survey.Query{
			Collection: collection, Vector: vec, Field: field, K: r.cfg.SearchK,
		})
		if err != nil {
			return candidate.Set{}, err //nolint:wrapcheck // wrapped by caller
		}
		return r.toSet(hits), nil
	}

	perPanel := 1
	if field == "" {
		perPanel = max(1, len(r.catalog.VectorFields(collection)))
	}

	ids := scope.IDs()
	var (
		mu  sync.Mutex
		all []survey.Hit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallelism)
	for start := 0; start < len(ids); start += r.cfg.ScopeChunk {
		chunk := ids[start:min(start+r.cfg.ScopeChunk, len(ids))]
		g.Go(func() error {
			hits, err := answers.Search(gctx, survey.Query{
				Collection: collection,
				Vector:     vec,
				Scope:      chunk,
				Field:      field,
				K:          min(r.cfg.SearchK, len(chunk)*perPanel),
			})
			if err != nil {
				return err //nolint:wrapcheck // wrapped by caller
			}
			mu.Lock()
			all = append(all, hits...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return candidate.Set{}, err //nolint:wrapcheck // wrapped by caller
	}
	return r.toSet(all), nil
}

// toSet keeps hits above the similarity floor; the best entry per panel wins.
func (r *Reranker) toSet(hits []survey.Hit) candidate.Set {
	members := make([]candidate.Member, 0, len(hits))
	for _, h := range hits {
		if h.Score < r.cfg.MinSimilarity {
			continue
		}
		m := candidate.Member{ID: h.PanelID, Score: h.Score, Scored: true}
		if h.Field != "" {
			m.Fields = []string{h.Field}
		}
		members = append(members, m)
	}
	return candidate.FromMembers(members)
}

func asEmbeddingFailure(err error) error {
	if errors.Is(err, domain.ErrEmbeddingFailure) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err)
}
