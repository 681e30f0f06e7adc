package filter

import (
	"fmt"
	"sort"
)

// MaxConditions bounds a single expression or structured filter.
const MaxConditions = 32

// MaxSetSize bounds the values of one set-membership condition.
const MaxSetSize = 1024

// Kind identifies the condition form.
type Kind int

const (
	// KindMatch is an exact value match.
	KindMatch Kind = iota + 1
	// KindRange is a numeric range.
	KindRange
	// KindAnyOf is set membership.
	KindAnyOf
)

func (k Kind) String() string {
	switch k {
	case KindMatch:
		return "match"
	case KindRange:
		return "range"
	case KindAnyOf:
		return "any_of"
	default:
		return "unknown"
	}
}

// Condition is a single clause on one field: value match, numeric range or set membership.
type Condition struct {
	key       string
	kind      Kind
	match     string
	values    []string
	rangeExpr *Range
}

// NewMatch creates an exact match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, kind: KindMatch, match: match}, nil
}

// NewAnyOf creates a set-membership condition. Duplicate values are collapsed.
func NewAnyOf(key string, values []string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	if len(values) > MaxSetSize {
		return Condition{}, fmt.Errorf("too many values for key %q (max %d)", key, MaxSetSize)
	}
	seen := make(map[string]struct{}, len(values))
	uniq := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			return Condition{}, fmt.Errorf("empty value in set for key %q", key)
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		uniq = append(uniq, v)
	}
	return Condition{key: key, kind: KindAnyOf, values: uniq}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, kind: KindRange, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Kind returns the condition form.
func (c Condition) Kind() Kind { return c.kind }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Values returns the set-membership values (a copy).
func (c Condition) Values() []string {
	out := make([]string, len(c.values))
	copy(out, c.values)
	return out
}

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// Tokens returns the raw values of a match or set condition.
func (c Condition) Tokens() []string {
	switch c.kind {
	case KindMatch:
		return []string{c.match}
	case KindAnyOf:
		return c.Values()
	default:
		return nil
	}
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Expression is a conjunction of conditions with optional negated conditions.
type Expression struct {
	must    []Condition
	mustNot []Condition
}

// NewExpression validates and creates an Expression.
func NewExpression(must, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditions {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditions)
	}
	if len(mustNot) > MaxConditions {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditions)
	}
	return Expression{must: must, mustNot: mustNot}, nil
}

// Must returns the required conditions.
func (e Expression) Must() []Condition { return e.must }

// MustNot returns the negated conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.mustNot) == 0
}

// Set is a structured filter: at most one condition per field.
type Set struct {
	byKey map[string]Condition
}

// NewSet builds a structured filter. Two conditions on the same field are rejected.
func NewSet(conds ...Condition) (Set, error) {
	if len(conds) > MaxConditions {
		return Set{}, fmt.Errorf("too many structured conditions (max %d)", MaxConditions)
	}
	m := make(map[string]Condition, len(conds))
	for _, c := range conds {
		if c.key == "" {
			return Set{}, fmt.Errorf("filter key is required")
		}
		if _, dup := m[c.key]; dup {
			return Set{}, fmt.Errorf("duplicate condition for key %q", c.key)
		}
		m[c.key] = c
	}
	return Set{byKey: m}, nil
}

// Len returns the number of conditions.
func (s Set) Len() int { return len(s.byKey) }

// IsEmpty reports whether no structured constraint was requested.
func (s Set) IsEmpty() bool { return len(s.byKey) == 0 }

// Has reports whether the field is constrained.
func (s Set) Has(key string) bool {
	_, ok := s.byKey[key]
	return ok
}

// Get returns the condition for a field.
func (s Set) Get(key string) (Condition, bool) {
	c, ok := s.byKey[key]
	return c, ok
}

// Keys returns constrained field names in ascending order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s.byKey))
	for k := range s.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Conditions returns conditions ordered by field name.
func (s Set) Conditions() []Condition {
	keys := s.Keys()
	out := make([]Condition, len(keys))
	for i, k := range keys {
		out[i] = s.byKey[k]
	}
	return out
}
