// Package chart defines insight chart specifications and their bucket math.
package chart

import (
	"math"
	"sort"
	"strings"
)

// Kind is the chart shape.
type Kind string

const (
	KindDistribution Kind = "distribution"
	KindCrosstab     Kind = "crosstab"
)

// MaxBuckets is the number of labelled buckets before the rest fold into OtherLabel.
const MaxBuckets = 10

// OtherLabel names the bucket collecting everything past MaxBuckets.
const OtherLabel = "other"

// Bucket is one bar of a distribution.
type Bucket struct {
	Label   string
	Count   int
	Percent float64
}

// Row is one row of a crosstab: a value of the first field broken down by the second.
type Row struct {
	Label   string
	Total   int
	Buckets []Bucket
}

// Spec is one prioritized chart.
type Spec struct {
	Tier   int
	Fields []string
	Kind   Kind
	Score  float64
	Reason string
	// Total is the number of respondents with a value for the chart.
	Total   int
	Buckets []Bucket
	Rows    []Row
}

// Key identifies the field or unordered field pair of a chart.
func (s Spec) Key() string {
	return Key(s.Fields...)
}

// Key builds the identity of a field or unordered field pair.
func Key(fields ...string) string {
	fs := append([]string(nil), fields...)
	sort.Strings(fs)
	return strings.Join(fs, "+")
}

// Less orders charts by tier ascending, score descending, key ascending.
func Less(a, b Spec) bool {
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Key() < b.Key()
}

// Sort orders charts in place with Less.
func Sort(specs []Spec) {
	sort.SliceStable(specs, func(i, j int) bool { return Less(specs[i], specs[j]) })
}

// Distribution turns value counts into buckets. Percentages are relative to base
// and rounded to one decimal; base <= 0 uses the sum of counts.
func Distribution(counts map[string]int, base int) []Bucket {
	type kv struct {
		label string
		n     int
	}
	items := make([]kv, 0, len(counts))
	sum := 0
	for l, n := range counts {
		if n <= 0 {
			continue
		}
		items = append(items, kv{l, n})
		sum += n
	}
	if len(items) == 0 {
		return nil
	}
	if base <= 0 {
		base = sum
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].n != items[j].n {
			return items[i].n > items[j].n
		}
		return items[i].label < items[j].label
	})

	out := make([]Bucket, 0, min(len(items), MaxBuckets+1))
	rest := 0
	for i, it := range items {
		if i >= MaxBuckets {
			rest += it.n
			continue
		}
		out = append(out, Bucket{Label: it.label, Count: it.n, Percent: Percent(it.n, base)})
	}
	if rest > 0 {
		out = mergeOther(out, rest, base)
	}
	return out
}

func mergeOther(out []Bucket, rest, base int) []Bucket {
	for i := range out {
		if out[i].Label == OtherLabel {
			out[i].Count += rest
			out[i].Percent = Percent(out[i].Count, base)
			return out
		}
	}
	return append(out, Bucket{Label: OtherLabel, Count: rest, Percent: Percent(rest, base)})
}

// Crosstab builds rows from counts keyed by first-field value then second-field value.
// Rows are ordered by total descending, label ascending, and capped at MaxBuckets.
func Crosstab(counts map[string]map[string]int) []Row {
	rows := make([]Row, 0, len(counts))
	for label, cols := range counts {
		total := 0
		for _, n := range cols {
			total += n
		}
		if total == 0 {
			continue
		}
		rows = append(rows, Row{Label: label, Total: total, Buckets: Distribution(cols, total)})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Label < rows[j].Label
	})
	if len(rows) > MaxBuckets {
		rows = rows[:MaxBuckets]
	}
	return rows
}

// Percent returns n/base as a percentage rounded to one decimal.
func Percent(n, base int) float64 {
	if base <= 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(base)) / 10
}
