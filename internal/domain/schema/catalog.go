package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DerivedRule adds Child as an insight when Parent's positive-response ratio is high.
// Positive lists the parent values counted as positive; when empty, any answer that
// is not a negative response counts.
type DerivedRule struct {
	Parent   string
	Child    string
	Positive []string
}

// Catalog is the immutable field registry.
type Catalog struct {
	fields     map[string]Field
	order      []string
	implied    map[string][]string
	derived    []DerivedRule
	core       []string
	baseline   []string
	keywords   []keyword
	commonNeg  []*regexp.Regexp
	fieldNeg   map[string][]*regexp.Regexp
	byCategory map[string][]string
}

type keyword struct {
	category string
	re       *regexp.Regexp
}

// Config is the raw material for a Catalog.
type Config struct {
	Fields []Field
	// Implied maps a field to the fields it makes near-certain.
	Implied  map[string][]string
	Derived  []DerivedRule
	Core     []string
	Baseline []string
	// Keywords maps a semantic category to its trigger words.
	Keywords map[string][]string
	// CommonNegatives are negative-response patterns shared by every field.
	CommonNegatives []string
}

// NewCatalog validates cross references and compiles patterns.
func NewCatalog(cfg Config) (*Catalog, error) {
	c := &Catalog{
		fields:     make(map[string]Field, len(cfg.Fields)),
		implied:    make(map[string][]string, len(cfg.Implied)),
		derived:    append([]DerivedRule(nil), cfg.Derived...),
		core:       append([]string(nil), cfg.Core...),
		baseline:   append([]string(nil), cfg.Baseline...),
		fieldNeg:   make(map[string][]*regexp.Regexp),
		byCategory: make(map[string][]string),
	}

	for _, f := range cfg.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field name is required")
		}
		if _, dup := c.fields[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		if f.IsRelational() && f.Column == "" {
			return nil, fmt.Errorf("relational field %q has no column", f.Name)
		}
		if f.IsVector() && f.Collection == "" {
			return nil, fmt.Errorf("vector field %q has no collection", f.Name)
		}
		c.fields[f.Name] = f
		c.order = append(c.order, f.Name)
		if f.Category != "" && !f.Hidden {
			c.byCategory[f.Category] = append(c.byCategory[f.Category], f.Name)
		}
		for _, p := range f.Negatives {
			re, err := compilePattern(p)
			if err != nil {
				return nil, fmt.Errorf("field %q negative pattern %q: %w", f.Name, p, err)
			}
			c.fieldNeg[f.Name] = append(c.fieldNeg[f.Name], re)
		}
	}

	ref := func(kind, name string) error {
		if _, ok := c.fields[name]; !ok {
			return fmt.Errorf("%s references unknown field %q", kind, name)
		}
		return nil
	}
	for _, f := range cfg.Fields {
		if f.Finer != "" {
			if err := ref("finer of "+f.Name, f.Finer); err != nil {
				return nil, err
			}
		}
	}
	for a, bs := range cfg.Implied {
		if err := ref("implied", a); err != nil {
			return nil, err
		}
		for _, b := range bs {
			if err := ref("implied by "+a, b); err != nil {
				return nil, err
			}
		}
		c.implied[a] = append([]string(nil), bs...)
	}
	for _, r := range cfg.Derived {
		if err := ref("derived parent", r.Parent); err != nil {
			return nil, err
		}
		if err := ref("derived child", r.Child); err != nil {
			return nil, err
		}
	}
	for _, name := range append(append([]string(nil), cfg.Core...), cfg.Baseline...) {
		if err := ref("demographics", name); err != nil {
			return nil, err
		}
	}

	categories := make([]string, 0, len(cfg.Keywords))
	for cat := range cfg.Keywords {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		for _, w := range cfg.Keywords[cat] {
			re, err := compileKeyword(w)
			if err != nil {
				return nil, fmt.Errorf("keyword %q: %w", w, err)
			}
			c.keywords = append(c.keywords, keyword{category: cat, re: re})
		}
	}
	for _, p := range cfg.CommonNegatives {
		re, err := compilePattern(p)
		if err != nil {
			return nil, fmt.Errorf("common negative %q: %w", p, err)
		}
		c.commonNeg = append(c.commonNeg, re)
	}

	return c, nil
}

// compileKeyword matches ASCII keywords as whole words, allowing a regular
// inflection suffix ("pets", "drinking"), and other scripts as substrings.
// Irregular forms are listed as keywords of their own.
func compileKeyword(w string) (*regexp.Regexp, error) {
	w = strings.ToLower(strings.TrimSpace(w))
	if isASCII(w) {
		return regexp.Compile(`(?i)\b` + regexp.QuoteMeta(w) + `(?:s|es|ed|er|ers|ing)?\b`)
	}
	return regexp.Compile(`(?i)` + regexp.QuoteMeta(w))
}

// compilePattern treats patterns as case-insensitive regular expressions.
// Spaces inside a pattern match any run of whitespace.
func compilePattern(p string) (*regexp.Regexp, error) {
	p = strings.Join(strings.Fields(p), `\s*`)
	return regexp.Compile(`(?i)` + p)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// Field returns a field by name.
func (c *Catalog) Field(name string) (Field, bool) {
	f, ok := c.fields[name]
	return f, ok
}

// Fields returns all fields in declaration order.
func (c *Catalog) Fields() []Field {
	out := make([]Field, len(c.order))
	for i, n := range c.order {
		out[i] = c.fields[n]
	}
	return out
}

// RelationalColumns returns the distinct columns of relational fields in declaration order.
func (c *Catalog) RelationalColumns() []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, n := range c.order {
		f := c.fields[n]
		if !f.IsRelational() {
			continue
		}
		if _, ok := seen[f.Column]; ok {
			continue
		}
		seen[f.Column] = struct{}{}
		cols = append(cols, f.Column)
	}
	return cols
}

// VectorFields returns the names of fields stored in the given logical collection.
func (c *Catalog) VectorFields(collection string) []string {
	var out []string
	for _, n := range c.order {
		f := c.fields[n]
		if f.IsVector() && f.Collection == collection {
			out = append(out, n)
		}
	}
	return out
}

// Implied returns fields made near-certain by constraining or querying name.
func (c *Catalog) Implied(name string) []string {
	return append([]string(nil), c.implied[name]...)
}

// DerivedRules returns the derived-field rules.
func (c *Catalog) DerivedRules() []DerivedRule {
	return append([]DerivedRule(nil), c.derived...)
}

// CoreDemographics returns the standard demographic fields in priority order.
func (c *Catalog) CoreDemographics() []string { return append([]string(nil), c.core...) }

// Baseline returns the display columns always shown.
func (c *Catalog) Baseline() []string { return append([]string(nil), c.baseline...) }

// CategoryFields returns chartable fields of a semantic category in declaration order.
func (c *Catalog) CategoryFields(category string) []string {
	return append([]string(nil), c.byCategory[category]...)
}

// MatchCategories counts keyword hits per semantic category across texts.
func (c *Catalog) MatchCategories(texts ...string) map[string]int {
	hits := make(map[string]int)
	for _, t := range texts {
		for _, kw := range c.keywords {
			if kw.re.MatchString(t) {
				hits[kw.category]++
			}
		}
	}
	return hits
}

// IsNegativeResponse reports whether an answer to field is a negative response.
func (c *Catalog) IsNegativeResponse(field, answer string) bool {
	if strings.TrimSpace(answer) == "" {
		return false
	}
	for _, re := range c.fieldNeg[field] {
		if re.MatchString(answer) {
			return true
		}
	}
	for _, re := range c.commonNeg {
		if re.MatchString(answer) {
			return true
		}
	}
	return false
}
