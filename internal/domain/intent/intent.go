// Package intent holds the parsed query intent consumed read-only by the retrieval pipeline.
package intent

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/search/filter"
)

// MaxConditions bounds positive and negative semantic conditions each.
const MaxConditions = 8

// QueryIntent is the immutable output of the external NL parser.
type QueryIntent struct {
	filter   filter.Set
	positive []string
	negative []string
	target   string
	query    string
	limit    int
}

// Option customizes optional intent members.
type Option func(*QueryIntent)

// WithTarget sets the field the query is most focused on.
func WithTarget(field string) Option {
	return func(q *QueryIntent) { q.target = strings.TrimSpace(field) }
}

// WithQuery keeps the raw natural-language question for keyword association.
func WithQuery(text string) Option {
	return func(q *QueryIntent) { q.query = strings.TrimSpace(text) }
}

// WithLimit bounds the final record count. Zero returns every matching record.
func WithLimit(n int) Option {
	return func(q *QueryIntent) { q.limit = n }
}

// New validates and creates a QueryIntent. Blank semantic conditions are dropped.
func New(structured filter.Set, positive, negative []string, opts ...Option) (QueryIntent, error) {
	q := QueryIntent{
		filter:   structured,
		positive: cleanConditions(positive),
		negative: cleanConditions(negative),
	}
	for _, opt := range opts {
		opt(&q)
	}

	if len(q.positive) > MaxConditions {
		return QueryIntent{}, fmt.Errorf("too many positive conditions (max %d): %w", MaxConditions, domain.ErrInvalidIntent)
	}
	if len(q.negative) > MaxConditions {
		return QueryIntent{}, fmt.Errorf("too many negative conditions (max %d): %w", MaxConditions, domain.ErrInvalidIntent)
	}
	if q.limit < 0 {
		return QueryIntent{}, fmt.Errorf("limit must not be negative: %w", domain.ErrInvalidIntent)
	}
	return q, nil
}

func cleanConditions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Filter returns the structured filter.
func (q QueryIntent) Filter() filter.Set { return q.filter }

// Positive returns the positive semantic conditions in order.
func (q QueryIntent) Positive() []string { return append([]string(nil), q.positive...) }

// Negative returns the negative semantic conditions in order.
func (q QueryIntent) Negative() []string { return append([]string(nil), q.negative...) }

// Target returns the target field, empty when none was identified.
func (q QueryIntent) Target() string { return q.target }

// Query returns the raw question text.
func (q QueryIntent) Query() string { return q.query }

// Limit returns the final record bound (0 = unbounded).
func (q QueryIntent) Limit() int { return q.limit }

// Unbounded returns a copy of q without a record limit.
func (q QueryIntent) Unbounded() QueryIntent {
	q.limit = 0
	return q
}

// HasStructured reports whether a structured filter was requested.
func (q QueryIntent) HasStructured() bool { return !q.filter.IsEmpty() }

// HasPositive reports whether positive semantic conditions exist.
func (q QueryIntent) HasPositive() bool { return len(q.positive) > 0 }

// HasNegative reports whether negative semantic conditions exist.
func (q QueryIntent) HasNegative() bool { return len(q.negative) > 0 }

// HasTarget reports whether a target field was identified.
func (q QueryIntent) HasTarget() bool { return q.target != "" }

// Texts returns every free-text fragment of the intent, used for keyword association.
func (q QueryIntent) Texts() []string {
	out := make([]string, 0, len(q.positive)+1)
	if q.query != "" {
		out = append(out, q.query)
	}
	return append(out, q.positive...)
}
