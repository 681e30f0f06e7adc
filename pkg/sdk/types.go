package panelscope

import "time"

// Intent is a parsed natural-language question.
type Intent struct {
	// Filter maps a catalog field to its structured condition.
	Filter map[string]Condition
	// Positive and Negative are semantic conditions matched against survey answers.
	Positive []string
	Negative []string
	// Target is the field the question is most focused on.
	Target string
	// Query is the raw question, used for keyword association.
	Query string
	// Limit bounds the returned records. Zero returns every match.
	Limit int
}

// Condition is a single structured filter clause. Exactly one member is set.
type Condition struct {
	Match string
	AnyOf []string
	Range *Range
}

// Match builds an equality condition.
func Match(v string) Condition { return Condition{Match: v} }

// AnyOf builds a set-membership condition.
func AnyOf(vs ...string) Condition { return Condition{AnyOf: vs} }

// Between builds an inclusive numeric range condition.
func Between(lo, hi float64) Condition {
	return Condition{Range: &Range{GTE: &lo, LTE: &hi}}
}

// Range defines numeric range boundaries.
type Range struct {
	GT  *float64
	GTE *float64
	LT  *float64
	LTE *float64
}

// ResolutionCase tells which stores answered a query.
type ResolutionCase string

// Resolution case constants.
const (
	CaseSQLOnly      ResolutionCase = "sql_only"
	CaseScopedVector ResolutionCase = "scoped_vector"
	CaseGlobalVector ResolutionCase = "global_vector"
	CaseEmpty        ResolutionCase = "empty"
)

// Result is the final record set of a query.
type Result struct {
	Case    ResolutionCase
	Columns []string
	Records []Record
	// Dropped lists identifiers the relational store had no row for.
	Dropped []string
}

// Record is one panel.
type Record struct {
	ID string
	// Score is the semantic similarity; valid only when Scored.
	Score      float64
	Scored     bool
	Attributes map[string]string
	Answers    []Answer
}

// Answer is a stored survey answer.
type Answer struct {
	Field string
	Text  string
}

// ChartKind is the chart shape.
type ChartKind string

// Chart kind constants.
const (
	ChartDistribution ChartKind = "distribution"
	ChartCrosstab     ChartKind = "crosstab"
)

// Chart is one prioritized insight chart.
type Chart struct {
	Tier    int
	Fields  []string
	Kind    ChartKind
	Score   float64
	Reason  string
	Total   int
	Buckets []Bucket
	Rows    []Row
}

// Bucket is one bar of a distribution.
type Bucket struct {
	Label   string
	Count   int
	Percent float64
}

// Row is one crosstab row.
type Row struct {
	Label   string
	Total   int
	Buckets []Bucket
}

// Generation describes a published set of store handles.
type Generation struct {
	Version uint64
	ID      string
	BuiltAt time.Time
}
