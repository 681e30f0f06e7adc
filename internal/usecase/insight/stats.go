package insight

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/panelscope/internal/domain/record"
	"github.com/kailas-cloud/panelscope/internal/domain/schema"
)

// maxLabelRunes bounds bucket labels.
const maxLabelRunes = 25

var parenthetical = regexp.MustCompile(`\s*[(\[（][^)\]）]*[)\]）]`)

// fieldStats holds the response counts of one field over a record set.
type fieldStats struct {
	counts map[string]int
	// respondents is the number of records with at least one value.
	respondents int
}

// dominant returns the share of respondents giving the most common value.
func (s fieldStats) dominant() float64 {
	if s.respondents == 0 {
		return 0
	}
	top := 0
	for _, n := range s.counts {
		top = max(top, n)
	}
	return float64(top) / float64(s.respondents)
}

// share returns the fraction of respondents whose value satisfies ok.
func (s fieldStats) share(ok func(label string) bool) float64 {
	if s.respondents == 0 {
		return 0
	}
	n := 0
	for label, c := range s.counts {
		if ok(label) {
			n += c
		}
	}
	return min(1, float64(n)/float64(s.respondents))
}

// scan computes stats for every chartable field. Fields are scanned in parallel.
func (e *Engine) scan(ctx context.Context, records []record.Record) (map[string]fieldStats, error) {
	var fields []schema.Field
	for _, f := range e.catalog.Fields() {
		if !f.Hidden {
			fields = append(fields, f)
		}
	}

	results := make([]fieldStats, len(fields))
	err := e.runner.Map(ctx, len(fields), func(i int) error {
		results[i] = collect(records, fields[i])
		return nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}

	out := make(map[string]fieldStats, len(fields))
	for i, f := range fields {
		out[f.Name] = results[i]
	}
	return out, nil
}

func collect(records []record.Record, f schema.Field) fieldStats {
	s := fieldStats{counts: make(map[string]int)}
	for _, r := range records {
		vals := valuesOf(r, f)
		if len(vals) == 0 {
			continue
		}
		s.respondents++
		for _, v := range vals {
			s.counts[v]++
		}
	}
	return s
}

// valuesOf returns the cleaned, deduplicated values of a field in one record.
// Multi-value fields yield one value per selected option.
func valuesOf(r record.Record, f schema.Field) []string {
	var raw []string
	if f.IsRelational() {
		if v := r.Attributes[f.Name]; v != "" {
			raw = append(raw, v)
		}
	} else {
		for _, a := range r.Answers {
			if a.Field == f.Name && a.Text != "" {
				raw = append(raw, a.Text)
			}
		}
	}
	if f.Type == schema.TypeList {
		var split []string
		for _, v := range raw {
			split = append(split, strings.Split(v, ",")...)
		}
		raw = split
	}

	var out []string
	seen := make(map[string]struct{}, len(raw))
	for _, v := range raw {
		label := cleanLabel(v)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// cleanLabel drops parenthetical remarks and truncates long answers.
func cleanLabel(s string) string {
	s = strings.TrimSpace(parenthetical.ReplaceAllString(s, ""))
	if utf8.RuneCountInString(s) > maxLabelRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxLabelRunes]))
	}
	return s
}
