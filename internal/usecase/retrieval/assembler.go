package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/candidate"
	"github.com/kailas-cloud/panelscope/internal/domain/intent"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
	"github.com/kailas-cloud/panelscope/internal/domain/schema"
	"github.com/kailas-cloud/panelscope/internal/logger"
	"github.com/kailas-cloud/panelscope/internal/metrics"
)

// AssemblerConfig bounds the assembled result.
type AssemblerConfig struct {
	// MaxLimit caps an explicit intent limit. Zero leaves it uncapped.
	MaxLimit   int
	MaxColumns int
}

// Assembler joins relational rows and survey answers for the final identifiers.
type Assembler struct {
	catalog *schema.Catalog
	cfg     AssemblerConfig
	now     func() time.Time
}

// NewAssembler creates an assembler. now derives age bands from birth years.
func NewAssembler(catalog *schema.Catalog, cfg AssemblerConfig, now func() time.Time) *Assembler {
	if cfg.MaxColumns <= 0 {
		cfg.MaxColumns = 12
	}
	if now == nil {
		now = time.Now
	}
	return &Assembler{catalog: catalog, cfg: cfg, now: now}
}

// Limit returns the record bound for an intent. Zero keeps every record.
func (a *Assembler) Limit(in intent.QueryIntent) int {
	n := in.Limit()
	if n <= 0 {
		return 0
	}
	if a.cfg.MaxLimit > 0 && n > a.cfg.MaxLimit {
		n = a.cfg.MaxLimit
	}
	return n
}

// Columns selects display columns: target, filtered fields, fields of the
// target's category, then the baseline. Hidden and unknown fields are skipped.
func (a *Assembler) Columns(in intent.QueryIntent) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if len(out) >= a.cfg.MaxColumns {
			return
		}
		f, ok := a.catalog.Field(name)
		if !ok || f.Hidden {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	add(in.Target())
	for _, k := range in.Filter().Keys() {
		add(k)
	}
	if f, ok := a.catalog.Field(in.Target()); ok && f.Category != "" {
		for _, name := range a.catalog.CategoryFields(f.Category) {
			add(name)
		}
	}
	for _, name := range a.catalog.Baseline() {
		add(name)
	}
	return out
}

// Assemble fetches rows and answers concurrently and joins them in candidate order.
// Identifiers with no relational row are dropped and reported, never fatal.
func (a *Assembler) Assemble(
	ctx context.Context, st Stores, set candidate.Set, in intent.QueryIntent, c record.Case,
) (record.FinalRecordSet, error) {
	ranked := set.Ranked()
	if limit := a.Limit(in); limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := record.Empty(c)
	out.Columns = a.Columns(in)
	if len(ranked) == 0 {
		return out, nil
	}

	ids := make([]string, len(ranked))
	for i, m := range ranked {
		ids[i] = m.ID
	}

	var (
		rows    map[string]map[string]string
		answers map[string][]record.Answer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = st.Panels.FetchRows(gctx, ids, a.catalog.RelationalColumns())
		if err != nil {
			return fmt.Errorf("fetch rows: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		answers, err = st.Answers.FetchAnswers(gctx, schema.CollectionSurvey, ids, a.surveyFields(), false)
		if err != nil {
			return fmt.Errorf("fetch answers: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return record.FinalRecordSet{}, err //nolint:wrapcheck // wrapped inside the group
	}

	year := a.now().Year()
	for _, m := range ranked {
		row, ok := rows[m.ID]
		if !ok {
			out.Dropped = append(out.Dropped, m.ID)
			continue
		}
		out.Records = append(out.Records, record.Record{
			ID:         m.ID,
			Score:      m.Score,
			Scored:     m.Scored,
			Attributes: a.attributes(row, year),
			Answers:    answers[m.ID],
		})
	}

	if len(out.Dropped) > 0 {
		metrics.PartialRecordMismatchTotal.Add(float64(len(out.Dropped)))
		logger.FromContext(ctx).Warn("Dropped identifiers without relational row",
			zap.Error(domain.ErrPartialRecordMismatch),
			zap.Int("dropped", len(out.Dropped)),
			zap.Strings("ids", head(out.Dropped, 20)),
		)
	}
	return out, nil
}

// attributes maps a row keyed by column onto catalog field names.
func (a *Assembler) attributes(row map[string]string, year int) map[string]string {
	attrs := make(map[string]string, len(row))
	for _, f := range a.catalog.Fields() {
		if !f.IsRelational() {
			continue
		}
		v, ok := row[f.Column]
		if !ok || v == "" {
			continue
		}
		if f.Type == schema.TypeAgeBand {
			birth, err := strconv.Atoi(v)
			if err != nil {
				continue
			}
			v = schema.BandOf(birth, year).Label()
		}
		attrs[f.Name] = v
	}
	return attrs
}

func (a *Assembler) surveyFields() []string {
	var out []string
	for _, name := range a.catalog.VectorFields(schema.CollectionSurvey) {
		if f, _ := a.catalog.Field(name); !f.Hidden {
			out = append(out, name)
		}
	}
	return out
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
