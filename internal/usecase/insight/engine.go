// Package insight selects and computes the charts shown for a record set.
package insight

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/panelscope/internal/domain/chart"
	"github.com/kailas-cloud/panelscope/internal/domain/intent"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
	"github.com/kailas-cloud/panelscope/internal/domain/schema"
	"github.com/kailas-cloud/panelscope/internal/logger"
	"github.com/kailas-cloud/panelscope/internal/metrics"
)

// Config holds the chart selection thresholds.
type Config struct {
	// SkewThreshold excludes fields whose dominant response share reaches it.
	SkewThreshold float64
	// DiscoveryLow and DiscoveryHigh bound the dominant share of tier 4 fields.
	DiscoveryLow  float64
	DiscoveryHigh float64
	MinCharts     int
	// DerivedRatio is the parent positive share that adds a derived field.
	DerivedRatio float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		SkewThreshold: 0.95,
		DiscoveryLow:  0.40,
		DiscoveryHigh: 0.95,
		MinCharts:     5,
		DerivedRatio:  0.70,
	}
}

// Engine ranks fields into prioritized charts.
type Engine struct {
	catalog *schema.Catalog
	runner  Runner
	cfg     Config
}

// New creates an insight engine. Zero thresholds take their defaults.
func New(catalog *schema.Catalog, runner Runner, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.SkewThreshold <= 0 {
		cfg.SkewThreshold = def.SkewThreshold
	}
	if cfg.DiscoveryLow <= 0 {
		cfg.DiscoveryLow = def.DiscoveryLow
	}
	if cfg.DiscoveryHigh <= 0 {
		cfg.DiscoveryHigh = def.DiscoveryHigh
	}
	if cfg.MinCharts <= 0 {
		cfg.MinCharts = def.MinCharts
	}
	if cfg.DerivedRatio <= 0 {
		cfg.DerivedRatio = def.DerivedRatio
	}
	return &Engine{catalog: catalog, runner: runner, cfg: cfg}
}

// Generate returns charts for records in priority order. Tiers 0 and 1 always
// run; later tiers run only while fewer than minCharts charts are selected.
// minCharts <= 0 uses the configured minimum.
func (e *Engine) Generate(
	ctx context.Context, records []record.Record, in intent.QueryIntent, minCharts int,
) ([]chart.Spec, error) {
	if len(records) == 0 {
		return []chart.Spec{}, nil
	}
	if minCharts <= 0 {
		minCharts = e.cfg.MinCharts
	}

	stats, err := e.scan(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("scan fields: %w", err)
	}

	s := newSelector(e, in, records, stats)
	e.tier0(s)
	e.tier1(s)
	if s.len() < minCharts {
		e.tier2(s)
	}
	if s.len() < minCharts {
		e.tier3(s)
	}
	if s.len() < minCharts {
		e.tier4(s)
	}

	chart.Sort(s.specs)
	perTier := make([]int, 5)
	for _, spec := range s.specs {
		metrics.CountChart(spec.Tier)
		perTier[spec.Tier]++
	}
	logger.FromContext(ctx).Debug("Selected charts",
		zap.Int("records", len(records)),
		zap.Int("charts", len(s.specs)),
		zap.Ints("per_tier", perTier),
	)
	return s.specs, nil
}

// tier0 adds the target and the finer breakdown of filtered fields.
func (e *Engine) tier0(s *selector) {
	if s.in.HasTarget() {
		s.distribution(0, s.in.Target(), 2, "query target", true)
	}
	for _, k := range s.in.Filter().Keys() {
		f, ok := e.catalog.Field(k)
		if !ok || f.Finer == "" {
			continue
		}
		s.distribution(0, f.Finer, 1, "breakdown of filtered "+f.Label, true)
	}
}

// tier1 adds fields of categories named in the query and derived fields of
// predominantly positive parents.
func (e *Engine) tier1(s *selector) {
	texts := s.in.Texts()
	if f, ok := e.catalog.Field(s.in.Target()); ok {
		texts = append(texts, f.Description())
	}
	hits := e.catalog.MatchCategories(texts...)
	categories := make([]string, 0, len(hits))
	for c := range hits {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		if hits[categories[i]] != hits[categories[j]] {
			return hits[categories[i]] > hits[categories[j]]
		}
		return categories[i] < categories[j]
	})
	for _, c := range categories {
		for _, name := range e.catalog.CategoryFields(c) {
			s.distribution(1, name, float64(hits[c]), "query mentions "+strings.ToLower(c), false)
		}
	}

	for _, rule := range e.catalog.DerivedRules() {
		parent, ok := s.stats[rule.Parent]
		if !ok || parent.respondents == 0 {
			continue
		}
		ratio := parent.share(e.isPositive(rule))
		if ratio < e.cfg.DerivedRatio {
			continue
		}
		s.distribution(1, rule.Child, ratio,
			fmt.Sprintf("%.1f%% positive on %s", ratio*100, rule.Parent), false)
	}
}

func (e *Engine) isPositive(rule schema.DerivedRule) func(string) bool {
	if len(rule.Positive) == 0 {
		return func(label string) bool { return !e.catalog.IsNegativeResponse(rule.Parent, label) }
	}
	return func(label string) bool {
		for _, p := range rule.Positive {
			if strings.EqualFold(p, label) {
				return true
			}
		}
		return false
	}
}

// tier2 adds core demographics that were not filtered on.
func (e *Engine) tier2(s *selector) {
	for _, name := range e.catalog.CoreDemographics() {
		st, ok := s.stats[name]
		if !ok {
			continue
		}
		s.distribution(2, name, st.dominant(), "core demographic", false)
	}
}

// tier3 crosses the pivot field with each unfiltered core demographic.
func (e *Engine) tier3(s *selector) {
	pivot := e.pivot(s)
	if pivot == "" {
		return
	}
	for _, name := range e.catalog.CoreDemographics() {
		s.crosstab(3, pivot, name)
	}
}

// pivot is the target when it has responses, otherwise the best tier 0/1 field.
func (e *Engine) pivot(s *selector) string {
	if st, ok := s.stats[s.in.Target()]; ok && st.respondents > 0 {
		if _, filtered := s.filtered[s.in.Target()]; !filtered {
			return s.in.Target()
		}
	}
	ranked := append([]chart.Spec(nil), s.specs...)
	chart.Sort(ranked)
	for _, spec := range ranked {
		if spec.Tier <= 1 && len(spec.Fields) == 1 {
			return spec.Fields[0]
		}
	}
	return ""
}

// tier4 adds remaining fields with a dominant share inside the discovery band,
// scored by distance from an even split.
func (e *Engine) tier4(s *selector) {
	for _, f := range e.catalog.Fields() {
		st, ok := s.stats[f.Name]
		if !ok || st.respondents == 0 {
			continue
		}
		ratio := st.dominant()
		if ratio < e.cfg.DiscoveryLow || ratio >= e.cfg.DiscoveryHigh {
			continue
		}
		s.distribution(4, f.Name, math.Abs(ratio-0.5),
			fmt.Sprintf("dominant response %.1f%%", ratio*100), false)
	}
}
