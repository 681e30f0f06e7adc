package retrieval

import (
	"context"
	"fmt"
	"math"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/candidate"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
	"github.com/kailas-cloud/panelscope/internal/domain/schema"
	"github.com/kailas-cloud/panelscope/internal/metrics"
)

const (
	// answerFetchChunk bounds the panels per pipelined answer fetch.
	answerFetchChunk = 500
	// cosineBatch is the number of panels scored per pool task.
	cosineBatch = 128
)

// ExclusionStats counts identifiers removed by each pass.
type ExclusionStats struct {
	Lexical int
	Vector  int
}

// Exclusion removes panels whose answers contradict the query.
//
// The lexical pass drops panels whose survey answer to the target field, or to a
// survey field that produced their semantic match, is a negative response. The vector pass
// drops panels with any answer whose embedding is close to a negative condition.
type Exclusion struct {
	catalog   *schema.Catalog
	runner    Runner
	threshold float64
}

// NewExclusion creates the filter. threshold is the cosine similarity at which
// an answer matches a negative condition.
func NewExclusion(catalog *schema.Catalog, runner Runner, threshold float64) *Exclusion {
	return &Exclusion{catalog: catalog, runner: runner, threshold: threshold}
}

// Apply runs the lexical pass, then the vector pass when negatives exist.
// The output is always a subset of set.
func (e *Exclusion) Apply(
	ctx context.Context, st Stores, set candidate.Set, negatives []string, targetField string,
) (candidate.Set, ExclusionStats, error) {
	var stats ExclusionStats
	if set.IsUnconstrained() || set.IsEmpty() {
		return set, stats, nil
	}

	answers, err := e.fetchPayload(ctx, st.Answers, set, targetField, len(negatives) > 0)
	if err != nil {
		return candidate.Set{}, stats, fmt.Errorf("exclusion payload: %w", err)
	}

	lexical := e.lexicalPass(set, answers, targetField)
	stats.Lexical = len(lexical)
	set = set.Without(lexical)
	metrics.ExclusionRemovedTotal.WithLabelValues("lexical").Add(float64(stats.Lexical))

	if len(negatives) == 0 || set.IsEmpty() {
		return set, stats, nil
	}

	negVecs, err := domain.EmbedAll(ctx, st.Embedder, negatives)
	if err != nil {
		return candidate.Set{}, stats, fmt.Errorf("embed negatives: %w", asEmbeddingFailure(err))
	}
	vector, err := e.vectorPass(ctx, set.IDs(), answers, negVecs)
	if err != nil {
		return candidate.Set{}, stats, fmt.Errorf("vector exclusion: %w", err)
	}
	stats.Vector = len(vector)
	metrics.ExclusionRemovedTotal.WithLabelValues("vector").Add(float64(stats.Vector))

	return set.Without(vector), stats, nil
}

// lexicalFields returns the survey answer fields checked for a member: the
// target and the fields that produced its score. Free-text summaries are never
// checked; they mix several habits in one answer.
func (e *Exclusion) lexicalFields(m candidate.Member, targetField string) map[string]struct{} {
	out := make(map[string]struct{}, len(m.Fields)+1)
	for _, name := range append([]string{targetField}, m.Fields...) {
		if f, ok := e.catalog.Field(name); ok && f.IsVector() && f.Collection == schema.CollectionSurvey {
			out[f.Name] = struct{}{}
		}
	}
	return out
}

// fetchPayload loads the answers both passes need. With vectors, every answer of
// the panel is loaded; otherwise only the lexically checked ones.
func (e *Exclusion) fetchPayload(
	ctx context.Context, answers AnswerRepository, set candidate.Set, targetField string, withVectors bool,
) (map[string][]record.Answer, error) {
	byCollection := make(map[string][]string)
	if withVectors {
		for _, coll := range []string{schema.CollectionSurvey, schema.CollectionFreeText} {
			byCollection[coll] = e.catalog.VectorFields(coll)
		}
	} else {
		seen := make(map[string]struct{})
		for _, m := range set.Ranked() {
			for name := range e.lexicalFields(m, targetField) {
				if _, dup := seen[name]; dup {
					continue
				}
				seen[name] = struct{}{}
				if f, ok := e.catalog.Field(name); ok && f.IsVector() {
					byCollection[f.Collection] = append(byCollection[f.Collection], name)
				}
			}
		}
	}

	out := make(map[string][]record.Answer, set.Len())
	ids := set.IDs()
	for _, coll := range []string{schema.CollectionSurvey, schema.CollectionFreeText} {
		fields := byCollection[coll]
		if len(fields) == 0 {
			continue
		}
		for start := 0; start < len(ids); start += answerFetchChunk {
			chunk := ids[start:min(start+answerFetchChunk, len(ids))]
			got, err := answers.FetchAnswers(ctx, coll, chunk, fields, withVectors)
			if err != nil {
				return nil, err //nolint:wrapcheck // wrapped by caller
			}
			for id, as := range got {
				out[id] = append(out[id], as...)
			}
		}
	}
	return out, nil
}

func (e *Exclusion) lexicalPass(
	set candidate.Set, answers map[string][]record.Answer, targetField string,
) map[string]struct{} {
	drop := make(map[string]struct{})
	for _, m := range set.Ranked() {
		fields := e.lexicalFields(m, targetField)
		for _, a := range answers[m.ID] {
			if _, ok := fields[a.Field]; !ok {
				continue
			}
			if e.catalog.IsNegativeResponse(a.Field, a.Text) {
				drop[m.ID] = struct{}{}
				break
			}
		}
	}
	return drop
}

func (e *Exclusion) vectorPass(
	ctx context.Context, ids []string, answers map[string][]record.Answer, negVecs [][]float32,
) (map[string]struct{}, error) {
	hit := make([]bool, len(ids))
	batches := (len(ids) + cosineBatch - 1) / cosineBatch
	err := e.runner.Map(ctx, batches, func(b int) error {
		for i := b * cosineBatch; i < min((b+1)*cosineBatch, len(ids)); i++ {
			hit[i] = e.matchesAny(answers[ids[i]], negVecs)
		}
		return nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}

	drop := make(map[string]struct{})
	for i, h := range hit {
		if h {
			drop[ids[i]] = struct{}{}
		}
	}
	return drop, nil
}

func (e *Exclusion) matchesAny(answers []record.Answer, negVecs [][]float32) bool {
	for _, a := range answers {
		if len(a.Vector) == 0 {
			continue
		}
		for _, n := range negVecs {
			if cosine(a.Vector, n) >= e.threshold {
				return true
			}
		}
	}
	return false
}

// cosine returns the cosine similarity, or 0 for mismatched or zero vectors.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
