package panelscope

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/chart"
	"github.com/kailas-cloud/panelscope/internal/domain/intent"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
	"github.com/kailas-cloud/panelscope/internal/domain/search/filter"
)

func toDomainIntent(in Intent) (intent.QueryIntent, error) {
	keys := make([]string, 0, len(in.Filter))
	for k := range in.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]filter.Condition, 0, len(keys))
	for _, k := range keys {
		c, err := toDomainCondition(k, in.Filter[k])
		if err != nil {
			return intent.QueryIntent{}, err
		}
		conds = append(conds, c)
	}
	set, err := filter.NewSet(conds...)
	if err != nil {
		return intent.QueryIntent{}, fmt.Errorf("%w: %w", domain.ErrInvalidIntent, err)
	}

	return intent.New(set, in.Positive, in.Negative,
		intent.WithTarget(in.Target),
		intent.WithQuery(in.Query),
		intent.WithLimit(in.Limit),
	)
}

func toDomainCondition(key string, c Condition) (filter.Condition, error) {
	set := 0
	if c.Match != "" {
		set++
	}
	if len(c.AnyOf) > 0 {
		set++
	}
	if c.Range != nil {
		set++
	}
	if set != 1 {
		return filter.Condition{}, domain.NewInvalidValue(key, "", "exactly one of match, any_of, range is required")
	}

	var (
		cond filter.Condition
		err  error
	)
	switch {
	case c.Match != "":
		cond, err = filter.NewMatch(key, c.Match)
	case len(c.AnyOf) > 0:
		cond, err = filter.NewAnyOf(key, c.AnyOf)
	default:
		var r filter.Range
		r, err = filter.NewRangeFilter(c.Range.GT, c.Range.GTE, c.Range.LT, c.Range.LTE)
		if err == nil {
			cond, err = filter.NewRange(key, r)
		}
	}
	if err != nil {
		return filter.Condition{}, domain.NewInvalidValue(key, "", err.Error())
	}
	return cond, nil
}

func fromDomainResult(set record.FinalRecordSet) Result {
	out := Result{
		Case:    ResolutionCase(set.Case),
		Columns: set.Columns,
		Dropped: set.Dropped,
		Records: make([]Record, len(set.Records)),
	}
	for i, r := range set.Records {
		rec := Record{
			ID:         r.ID,
			Score:      r.Score,
			Scored:     r.Scored,
			Attributes: r.Attributes,
		}
		for _, a := range r.Answers {
			rec.Answers = append(rec.Answers, Answer{Field: a.Field, Text: a.Text})
		}
		out.Records[i] = rec
	}
	return out
}

func fromDomainCharts(specs []chart.Spec) []Chart {
	out := make([]Chart, len(specs))
	for i, s := range specs {
		c := Chart{
			Tier:    s.Tier,
			Fields:  s.Fields,
			Kind:    ChartKind(s.Kind),
			Score:   s.Score,
			Reason:  s.Reason,
			Total:   s.Total,
			Buckets: fromDomainBuckets(s.Buckets),
		}
		for _, r := range s.Rows {
			c.Rows = append(c.Rows, Row{Label: r.Label, Total: r.Total, Buckets: fromDomainBuckets(r.Buckets)})
		}
		out[i] = c
	}
	return out
}

func fromDomainBuckets(bs []chart.Bucket) []Bucket {
	if bs == nil {
		return nil
	}
	out := make([]Bucket, len(bs))
	for i, b := range bs {
		out[i] = Bucket{Label: b.Label, Count: b.Count, Percent: b.Percent}
	}
	return out
}
