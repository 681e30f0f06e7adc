package insight

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/panelscope/internal/domain/chart"
	"github.com/kailas-cloud/panelscope/internal/domain/intent"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
	"github.com/kailas-cloud/panelscope/internal/domain/schema"
	"github.com/kailas-cloud/panelscope/internal/domain/search/filter"
)

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

func newTestEngine() *Engine {
	return New(schema.Default(), seqRunner{}, DefaultConfig())
}

func rec(id string, attrs map[string]string, answers ...record.Answer) record.Record {
	return record.Record{ID: id, Attributes: attrs, Answers: answers}
}

func surveyAnswer(field, text string) record.Answer {
	return record.Answer{Field: field, Collection: schema.CollectionSurvey, Text: text}
}

func buildIntent(t *testing.T, filters map[string]string, positive []string, opts ...intent.Option) intent.QueryIntent {
	t.Helper()
	var conds []filter.Condition
	for k, v := range filters {
		c, err := filter.NewMatch(k, v)
		require.NoError(t, err)
		conds = append(conds, c)
	}
	fs, err := filter.NewSet(conds...)
	require.NoError(t, err)
	in, err := intent.New(fs, positive, nil, opts...)
	require.NoError(t, err)
	return in
}

// chartFields collects every field referenced by the charts.
func chartFields(specs []chart.Spec) map[string]bool {
	out := make(map[string]bool)
	for _, s := range specs {
		for _, f := range s.Fields {
			out[f] = true
		}
	}
	return out
}

func findChart(specs []chart.Spec, fields ...string) (chart.Spec, bool) {
	key := chart.Key(fields...)
	for _, s := range specs {
		if s.Key() == key {
			return s, true
		}
	}
	return chart.Spec{}, false
}

func requireUnique(t *testing.T, specs []chart.Spec) {
	t.Helper()
	seen := make(map[string]bool)
	for _, s := range specs {
		require.Falsef(t, seen[s.Key()], "duplicate chart %s", s.Key())
		seen[s.Key()] = true
	}
}
