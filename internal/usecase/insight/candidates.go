package insight

import (
	"fmt"

	"github.com/kailas-cloud/panelscope/internal/domain/chart"
	"github.com/kailas-cloud/panelscope/internal/domain/intent"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
)

// selector accumulates charts for one request and enforces the exclusion rules.
type selector struct {
	e       *Engine
	in      intent.QueryIntent
	records []record.Record
	stats   map[string]fieldStats

	filtered map[string]struct{}
	implied  map[string]struct{}
	keys     map[string]struct{}
	specs    []chart.Spec
}

func newSelector(e *Engine, in intent.QueryIntent, records []record.Record, stats map[string]fieldStats) *selector {
	s := &selector{
		e:        e,
		in:       in,
		records:  records,
		stats:    stats,
		filtered: make(map[string]struct{}),
		implied:  make(map[string]struct{}),
		keys:     make(map[string]struct{}),
	}
	queried := in.Filter().Keys()
	for _, k := range queried {
		s.filtered[k] = struct{}{}
	}
	if in.HasTarget() {
		queried = append(queried, in.Target())
	}
	for _, k := range queried {
		for _, imp := range e.catalog.Implied(k) {
			s.implied[imp] = struct{}{}
		}
	}
	return s
}

func (s *selector) len() int { return len(s.specs) }

// eligible reports whether a field may be charted. Mandated fields bypass the
// skew rule; the target also bypasses the implied-field rule.
func (s *selector) eligible(name string, mandated bool) (fieldStats, bool) {
	f, ok := s.e.catalog.Field(name)
	if !ok || f.Hidden {
		return fieldStats{}, false
	}
	if _, ok := s.filtered[name]; ok {
		return fieldStats{}, false
	}
	if _, ok := s.implied[name]; ok && name != s.in.Target() {
		return fieldStats{}, false
	}
	st, ok := s.stats[name]
	if !ok || st.respondents == 0 {
		return fieldStats{}, false
	}
	if !mandated && st.dominant() >= s.e.cfg.SkewThreshold {
		return fieldStats{}, false
	}
	return st, true
}

func (s *selector) has(fields ...string) bool {
	_, ok := s.keys[chart.Key(fields...)]
	return ok
}

// distribution adds a single-field chart unless the field is ineligible or already charted.
func (s *selector) distribution(tier int, name string, score float64, reason string, mandated bool) bool {
	if s.has(name) {
		return false
	}
	st, ok := s.eligible(name, mandated)
	if !ok {
		return false
	}
	s.keys[chart.Key(name)] = struct{}{}
	s.specs = append(s.specs, chart.Spec{
		Tier:    tier,
		Fields:  []string{name},
		Kind:    chart.KindDistribution,
		Score:   score,
		Reason:  reason,
		Total:   st.respondents,
		Buckets: chart.Distribution(st.counts, st.respondents),
	})
	return true
}

// crosstab adds a pivot-by-segment chart. The pivot has already been chosen,
// so only the segment is checked for eligibility.
func (s *selector) crosstab(tier int, pivot, segment string) bool {
	if pivot == segment || s.has(pivot, segment) {
		return false
	}
	if _, ok := s.eligible(segment, false); !ok {
		return false
	}
	pf, ok := s.e.catalog.Field(pivot)
	if !ok {
		return false
	}
	sf, _ := s.e.catalog.Field(segment)

	counts := make(map[string]map[string]int)
	covered := 0
	for _, r := range s.records {
		pv, sv := valuesOf(r, pf), valuesOf(r, sf)
		if len(pv) == 0 || len(sv) == 0 {
			continue
		}
		covered++
		for _, a := range pv {
			row, ok := counts[a]
			if !ok {
				row = make(map[string]int)
				counts[a] = row
			}
			for _, b := range sv {
				row[b]++
			}
		}
	}
	if covered == 0 {
		return false
	}

	s.keys[chart.Key(pivot, segment)] = struct{}{}
	s.specs = append(s.specs, chart.Spec{
		Tier:   tier,
		Fields: []string{pivot, segment},
		Kind:   chart.KindCrosstab,
		Score:  float64(covered) / float64(len(s.records)),
		Reason: fmt.Sprintf("%s by %s", pf.Label, sf.Label),
		Total:  covered,
		Rows:   chart.Crosstab(counts),
	})
	return true
}
