// Package retrieval resolves a query intent into the final record set across
// the relational and vector stores.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/intent"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
	"github.com/kailas-cloud/panelscope/internal/domain/schema"
	"github.com/kailas-cloud/panelscope/internal/logger"
	"github.com/kailas-cloud/panelscope/internal/metrics"
)

// Config groups the stage settings.
type Config struct {
	Reranker          RerankerConfig
	Assembler         AssemblerConfig
	NegativeThreshold float64
}

// Service runs the hybrid retrieval pipeline.
type Service struct {
	catalog   *schema.Catalog
	acquire   Acquirer
	resolver  *Resolver
	reranker  *Reranker
	exclusion *Exclusion
	assembler *Assembler
}

// New creates the pipeline. acquire supplies the stores of each request.
func New(catalog *schema.Catalog, acquire Acquirer, runner Runner, cfg Config, opts ...CompilerOption) *Service {
	compiler := NewCompiler(catalog, opts...)
	return &Service{
		catalog:   catalog,
		acquire:   acquire,
		resolver:  NewResolver(compiler),
		reranker:  NewReranker(catalog, cfg.Reranker),
		exclusion: NewExclusion(catalog, runner, cfg.NegativeThreshold),
		assembler: NewAssembler(catalog, cfg.Assembler, compiler.now),
	}
}

// Resolve runs the pipeline on the currently published stores.
func (s *Service) Resolve(ctx context.Context, in intent.QueryIntent) (record.FinalRecordSet, error) {
	st, release := s.acquire()
	defer release()
	return s.ResolveWith(ctx, st, in)
}

// ResolvePopulation resolves every record matching in, ignoring its limit, and
// also returns the page bounded by the limit. Both come from one pipeline run on
// the same stores.
func (s *Service) ResolvePopulation(
	ctx context.Context, in intent.QueryIntent,
) (population, page record.FinalRecordSet, err error) {
	st, release := s.acquire()
	defer release()

	population, err = s.ResolveWith(ctx, st, in.Unbounded())
	if err != nil {
		return record.FinalRecordSet{}, record.FinalRecordSet{}, err
	}
	return population, population.Head(s.assembler.Limit(in)), nil
}

// ResolveWith runs the pipeline on the given stores.
func (s *Service) ResolveWith(ctx context.Context, st Stores, in intent.QueryIntent) (record.FinalRecordSet, error) {
	if in.HasTarget() {
		if _, ok := s.catalog.Field(in.Target()); !ok {
			return record.FinalRecordSet{}, fmt.Errorf("unknown target field %q: %w", in.Target(), domain.ErrInvalidIntent)
		}
	}

	texts := s.semanticTexts(in)
	c := resolutionCase(in.HasStructured(), len(texts) > 0)
	log := logger.FromContext(ctx).With(zap.String("case", string(c)))
	if c == record.CaseEmpty {
		log.Debug("Nothing to resolve")
		return record.Empty(c), nil
	}

	start := time.Now()
	set, err := s.resolver.Resolve(ctx, st.Panels, in.Filter())
	if err != nil {
		return record.FinalRecordSet{}, err
	}
	metrics.ObserveStage("resolve", string(c), start)
	log.Debug("Structured candidates", zap.Int("count", set.Len()), zap.Bool("unconstrained", set.IsUnconstrained()))

	if len(texts) > 0 {
		start = time.Now()
		set, err = s.reranker.Rerank(ctx, st, texts, in.Target(), set, s.reranker.cfg.SearchK)
		if err != nil {
			return record.FinalRecordSet{}, fmt.Errorf("rerank: %w", err)
		}
		metrics.ObserveStage("rerank", string(c), start)
		log.Debug("Vector candidates", zap.Int("count", set.Len()), zap.Int("conditions", len(texts)))
	}

	if in.HasNegative() || len(texts) > 0 {
		start = time.Now()
		var stats ExclusionStats
		set, stats, err = s.exclusion.Apply(ctx, st, set, in.Negative(), in.Target())
		if err != nil {
			return record.FinalRecordSet{}, fmt.Errorf("exclude: %w", err)
		}
		metrics.ObserveStage("exclude", string(c), start)
		log.Debug("Negative exclusion",
			zap.Int("count", set.Len()), zap.Int("lexical", stats.Lexical), zap.Int("vector", stats.Vector))
	}

	start = time.Now()
	out, err := s.assembler.Assemble(ctx, st, set, in, c)
	if err != nil {
		return record.FinalRecordSet{}, fmt.Errorf("assemble: %w", err)
	}
	metrics.ObserveStage("assemble", string(c), start)
	log.Debug("Assembled records", zap.Int("count", out.Len()), zap.Int("dropped", len(out.Dropped)))
	return out, nil
}

// semanticTexts returns the positive conditions, or the target question when
// there are none and the target is a survey field.
func (s *Service) semanticTexts(in intent.QueryIntent) []string {
	if in.HasPositive() {
		return in.Positive()
	}
	f, ok := s.catalog.Field(in.Target())
	if ok && f.IsVector() && f.Collection == schema.CollectionSurvey {
		return []string{f.Description()}
	}
	return nil
}

func resolutionCase(structured, semantic bool) record.Case {
	switch {
	case structured && semantic:
		return record.CaseScopedVector
	case structured:
		return record.CaseSQLOnly
	case semantic:
		return record.CaseGlobalVector
	default:
		return record.CaseEmpty
	}
}
