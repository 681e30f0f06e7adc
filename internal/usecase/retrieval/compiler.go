package retrieval

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/schema"
	"github.com/kailas-cloud/panelscope/internal/domain/search/filter"
	"github.com/kailas-cloud/panelscope/internal/domain/search/predicate"
)

// Compiler turns a structured filter into a parameterized predicate over the panels table.
type Compiler struct {
	catalog *schema.Catalog
	now     func() time.Time
}

// CompilerOption customizes a Compiler.
type CompilerOption func(*Compiler)

// WithClock sets the clock used to turn age bands into birth years.
func WithClock(now func() time.Time) CompilerOption {
	return func(c *Compiler) { c.now = now }
}

// NewCompiler creates a compiler over the catalog.
func NewCompiler(catalog *schema.Catalog, opts ...CompilerOption) *Compiler {
	c := &Compiler{catalog: catalog, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds the predicate. Conditions are compiled in ascending field order.
// Column names come from the catalog only; every value is bound.
func (c *Compiler) Compile(fs filter.Set, d predicate.Dialect) (predicate.Predicate, error) {
	b := predicate.NewBuilder(d)
	year := c.now().Year()

	for _, cond := range fs.Conditions() {
		f, ok := c.catalog.Field(cond.Key())
		if !ok {
			return predicate.Predicate{}, domain.NewInvalidField(cond.Key(), "unknown field")
		}
		if !f.IsRelational() {
			return predicate.Predicate{}, domain.NewInvalidField(cond.Key(), "not a structured field")
		}

		var (
			clause string
			err    error
		)
		switch f.Type {
		case schema.TypeAgeBand:
			clause, err = compileAgeBand(b, f, cond, year)
		case schema.TypeInteger:
			clause, err = compileInteger(b, f, cond)
		case schema.TypeList:
			clause, err = compileList(b, f, cond)
		default:
			clause, err = compileText(b, f, cond)
		}
		if err != nil {
			return predicate.Predicate{}, err
		}
		b.And(clause)
	}
	return b.Build(), nil
}

// resolveTokens maps raw tokens through the alias table, keeping first-seen order.
func resolveTokens(f schema.Field, tokens []string) ([]string, error) {
	seen := make(map[string]struct{}, len(tokens))
	var out []string
	for _, tok := range tokens {
		vals, ok := f.Resolve(tok)
		if !ok {
			return nil, domain.NewInvalidValue(f.Name, tok, "no matching value")
		}
		for _, v := range vals {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out, nil
}

func anyValues[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func equalsOrIn(b *predicate.Builder, column string, vals []any) string {
	if len(vals) == 1 {
		return column + " = " + b.Bind(vals[0])
	}
	return column + " IN (" + b.BindAll(vals) + ")"
}

func compileText(b *predicate.Builder, f schema.Field, cond filter.Condition) (string, error) {
	if cond.Kind() == filter.KindRange {
		return "", domain.NewInvalidValue(f.Name, "", "range is not supported on a text field")
	}
	vals, err := resolveTokens(f, cond.Tokens())
	if err != nil {
		return "", err
	}
	return equalsOrIn(b, f.Column, anyValues(vals)), nil
}

func compileInteger(b *predicate.Builder, f schema.Field, cond filter.Condition) (string, error) {
	if cond.Kind() == filter.KindRange {
		return compileRange(b, f.Name, f.Column, *cond.Range(), func(v float64) (float64, bool) { return v, true })
	}
	vals, err := resolveTokens(f, cond.Tokens())
	if err != nil {
		return "", err
	}
	ints := make([]int64, len(vals))
	for i, v := range vals {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return "", domain.NewInvalidValue(f.Name, v, "not an integer")
		}
		ints[i] = n
	}
	return equalsOrIn(b, f.Column, anyValues(ints)), nil
}

// compileList matches any of the values inside a comma-separated column.
func compileList(b *predicate.Builder, f schema.Field, cond filter.Condition) (string, error) {
	if cond.Kind() == filter.KindRange {
		return "", domain.NewInvalidValue(f.Name, "", "range is not supported on a list field")
	}
	vals, err := resolveTokens(f, cond.Tokens())
	if err != nil {
		return "", err
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = "(',' || " + f.Column + " || ',') LIKE " + b.Bind("%,"+escapeLike(v)+",%") + ` ESCAPE '\'`
	}
	return strings.Join(parts, " OR "), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// compileAgeBand maps decade bands onto birth_year ranges for the current year.
// A numeric range on the band field is an age range.
func compileAgeBand(b *predicate.Builder, f schema.Field, cond filter.Condition, year int) (string, error) {
	if cond.Kind() == filter.KindRange {
		return compileRange(b, f.Name, f.Column, *cond.Range(), func(age float64) (float64, bool) {
			return float64(year) - age, false
		})
	}

	labels, err := resolveTokens(f, cond.Tokens())
	if err != nil {
		return "", err
	}
	seen := make(map[schema.AgeBand]struct{}, len(labels))
	var parts []string
	for _, label := range labels {
		band, ok := schema.ParseAgeBand(label)
		if !ok {
			return "", domain.NewInvalidValue(f.Name, label, "not an age band")
		}
		if _, dup := seen[band]; dup {
			continue
		}
		seen[band] = struct{}{}
		lo, hi := band.BirthYears(year)
		if band.Open {
			parts = append(parts, f.Column+" <= "+b.Bind(hi))
			continue
		}
		parts = append(parts, f.Column+" BETWEEN "+b.Bind(lo)+" AND "+b.Bind(hi))
	}
	return strings.Join(parts, " OR "), nil
}

// compileRange renders gt/gte/lt/lte bounds. conv maps a bound to the column scale;
// when it reports false the mapping is decreasing and the comparison operators flip.
func compileRange(
	b *predicate.Builder, field, column string, r filter.Range, conv func(float64) (float64, bool),
) (string, error) {
	type bound struct {
		v  *float64
		op string
	}
	bounds := []bound{{r.GT(), ">"}, {r.GTE(), ">="}, {r.LT(), "<"}, {r.LTE(), "<="}}
	flip := map[string]string{">": "<", ">=": "<=", "<": ">", "<=": ">="}

	var parts []string
	for _, bd := range bounds {
		if bd.v == nil {
			continue
		}
		if math.IsNaN(*bd.v) || math.IsInf(*bd.v, 0) {
			return "", domain.NewInvalidValue(field, fmt.Sprint(*bd.v), "not a finite number")
		}
		v, increasing := conv(*bd.v)
		op := bd.op
		if !increasing {
			op = flip[op]
		}
		parts = append(parts, column+" "+op+" "+b.Bind(v))
	}
	return strings.Join(parts, " AND "), nil
}
