package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/intent"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
	"github.com/kailas-cloud/panelscope/internal/domain/schema"
	"github.com/kailas-cloud/panelscope/internal/domain/search/filter"
	"github.com/kailas-cloud/panelscope/internal/domain/search/predicate"
	"github.com/kailas-cloud/panelscope/internal/repository/survey"
)

// testNow fixes the current year at 2025.
func testNow() time.Time { return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC) }

// mockPanels implements PanelRepository.
type mockPanels struct {
	dialect     predicate.Dialect
	queryIDsFn  func(ctx context.Context, pred predicate.Predicate) ([]string, error)
	fetchRowsFn func(ctx context.Context, ids, columns []string) (map[string]map[string]string, error)

	mu       sync.Mutex
	lastPred predicate.Predicate
	queries  int
}

func (m *mockPanels) Dialect() predicate.Dialect {
	if m.dialect == 0 {
		return predicate.Postgres
	}
	return m.dialect
}

func (m *mockPanels) QueryIDs(ctx context.Context, pred predicate.Predicate) ([]string, error) {
	m.mu.Lock()
	m.lastPred = pred
	m.queries++
	m.mu.Unlock()
	if m.queryIDsFn != nil {
		return m.queryIDsFn(ctx, pred)
	}
	return nil, nil
}

func (m *mockPanels) FetchRows(ctx context.Context, ids, columns []string) (map[string]map[string]string, error) {
	if m.fetchRowsFn != nil {
		return m.fetchRowsFn(ctx, ids, columns)
	}
	out := make(map[string]map[string]string, len(ids))
	for _, id := range ids {
		out[id] = map[string]string{"gender": "F", "birth_year": "1990", "region_major": "Seoul"}
	}
	return out, nil
}

// mockAnswers implements AnswerRepository over in-memory answers.
type mockAnswers struct {
	searchFn func(ctx context.Context, q survey.Query) ([]survey.Hit, error)
	fetchErr error
	// answers maps panel id to its stored answers.
	answers map[string][]record.Answer

	mu       sync.Mutex
	searches []survey.Query
}

func (m *mockAnswers) Search(ctx context.Context, q survey.Query) ([]survey.Hit, error) {
	m.mu.Lock()
	m.searches = append(m.searches, q)
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return nil, nil
}

func (m *mockAnswers) FetchAnswers(
	_ context.Context, collection string, ids, fields []string, withVectors bool,
) (map[string][]record.Answer, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	want := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		want[f] = struct{}{}
	}
	out := make(map[string][]record.Answer)
	for _, id := range ids {
		for _, a := range m.answers[id] {
			if a.Collection != collection {
				continue
			}
			if _, ok := want[a.Field]; !ok {
				continue
			}
			if !withVectors {
				a.Vector = nil
			}
			out[id] = append(out[id], a)
		}
	}
	return out, nil
}

func (m *mockAnswers) searchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.searches)
}

// mockEmbedder returns fixed vectors per text and counts calls.
type mockEmbedder struct {
	vectors map[string][]float32
	err     error

	mu    sync.Mutex
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	v, ok := m.vectors[text]
	if !ok {
		v = []float32{0, 0, 1}
	}
	return domain.EmbeddingResult{Embedding: v}, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// seqRunner runs tasks inline.
type seqRunner struct{}

func (seqRunner) Map(ctx context.Context, n int, fn func(i int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(i); err != nil {
			return err
		}
	}
	return nil
}

type testStores struct {
	panels  *mockPanels
	answers *mockAnswers
	embed   *mockEmbedder
}

func newTestStores() *testStores {
	return &testStores{
		panels:  &mockPanels{},
		answers: &mockAnswers{answers: map[string][]record.Answer{}},
		embed:   &mockEmbedder{vectors: map[string][]float32{}},
	}
}

func (s *testStores) Stores() Stores {
	return Stores{Panels: s.panels, Answers: s.answers, Embedder: s.embed}
}

func newTestService(t *testing.T, ts *testStores) *Service {
	t.Helper()
	acquire := func() (Stores, func()) { return ts.Stores(), func() {} }
	return New(schema.Default(), acquire, seqRunner{}, Config{
		Reranker:          RerankerConfig{SearchK: 100, MinSimilarity: 0.35, ScopeChunk: 2, Parallelism: 2},
		Assembler:         AssemblerConfig{MaxLimit: 100, MaxColumns: 12},
		NegativeThreshold: 0.8,
	}, WithClock(testNow))
}

func mustMatch(t *testing.T, key, value string) filter.Condition {
	t.Helper()
	c, err := filter.NewMatch(key, value)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func mustAnyOf(t *testing.T, key string, values ...string) filter.Condition {
	t.Helper()
	c, err := filter.NewAnyOf(key, values)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func mustRange(t *testing.T, key string, gt, gte, lt, lte *float64) filter.Condition {
	t.Helper()
	r, err := filter.NewRangeFilter(gt, gte, lt, lte)
	if err != nil {
		t.Fatal(err)
	}
	c, err := filter.NewRange(key, r)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func mustSet(t *testing.T, conds ...filter.Condition) filter.Set {
	t.Helper()
	s, err := filter.NewSet(conds...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func mustIntent(
	t *testing.T, fs filter.Set, positive, negative []string, opts ...intent.Option,
) intent.QueryIntent {
	t.Helper()
	in, err := intent.New(fs, positive, negative, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return in
}

func f64(v float64) *float64 { return &v }

func answer(field, collection, text string, vec ...float32) record.Answer {
	return record.Answer{Field: field, Collection: collection, Text: text, Vector: vec}
}

// hitsFor returns a search func that answers every query with the given scores,
// restricted to the query scope when one is set.
func hitsFor(field string, scores map[string]float64) func(context.Context, survey.Query) ([]survey.Hit, error) {
	return func(_ context.Context, q survey.Query) ([]survey.Hit, error) {
		inScope := func(id string) bool {
			if len(q.Scope) == 0 {
				return true
			}
			for _, s := range q.Scope {
				if s == id {
					return true
				}
			}
			return false
		}
		var hits []survey.Hit
		for id, score := range scores {
			if inScope(id) {
				hits = append(hits, survey.Hit{PanelID: id, Field: field, Score: score})
			}
		}
		return hits, nil
	}
}

func idList(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%02d", i+1)
	}
	return ids
}

func joinArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, ",")
}
