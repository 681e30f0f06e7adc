// Package schema declares the panel field catalog: types, storage location, aliases,
// semantic categories and the field relationships used by insight selection.
package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType is the declared type of a field.
type ValueType int

const (
	// TypeText is a categorical or free-text value.
	TypeText ValueType = iota + 1
	// TypeInteger is a whole number.
	TypeInteger
	// TypeAgeBand is a decade band derived from the birth_year column.
	TypeAgeBand
	// TypeList is a comma-separated multi-value field.
	TypeList
)

// Source tells which store holds the field.
type Source int

const (
	// SourceRelational fields are columns of the panels table.
	SourceRelational Source = iota + 1
	// SourceVector fields are answers stored in a vector collection.
	SourceVector
)

// Logical vector collections. Physical names come from configuration.
const (
	CollectionSurvey   = "survey"
	CollectionFreeText = "freetext"
)

// Field describes one panel attribute.
type Field struct {
	Name       string
	Label      string
	Type       ValueType
	Source     Source
	Column     string
	Collection string
	// Question is the canonical text of a survey field, used as its semantic description.
	Question string
	Category string
	// Finer names the finer-granularity breakdown of this field.
	Finer string
	// Aliases maps lowercased tokens to canonical stored values.
	Aliases map[string][]string
	// Domain enumerates allowed stored values; empty means open vocabulary.
	Domain []string
	// Negatives are lexical patterns of a negative response, on top of the common ones.
	Negatives []string
	// Hidden fields are never charted.
	Hidden bool
}

// IsRelational reports whether the field is a column of the panels table.
func (f Field) IsRelational() bool { return f.Source == SourceRelational }

// IsVector reports whether the field lives in a vector collection.
func (f Field) IsVector() bool { return f.Source == SourceVector }

// Description returns the text used to embed the field when it is the query target.
func (f Field) Description() string {
	if f.Question != "" {
		return f.Question
	}
	return f.Label
}

// Resolve maps a raw token to canonical stored values through the alias table.
// Open-vocabulary fields accept unknown tokens verbatim.
func (f Field) Resolve(token string) ([]string, bool) {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return nil, false
	}
	if vals, ok := f.Aliases[strings.ToLower(tok)]; ok {
		return append([]string(nil), vals...), true
	}
	if len(f.Domain) == 0 {
		return []string{tok}, true
	}
	for _, v := range f.Domain {
		if strings.EqualFold(v, tok) {
			return []string{v}, true
		}
	}
	return nil, false
}

// AgeBand is a decade band. Open is set for the last band ("60s+").
type AgeBand struct {
	Decade int
	Open   bool
}

// OldestBand is the decade at which bands stop splitting.
const OldestBand = 60

// Label renders the band as stored in charts, e.g. "30s" or "60s+".
func (b AgeBand) Label() string {
	if b.Open {
		return fmt.Sprintf("%ds+", b.Decade)
	}
	return fmt.Sprintf("%ds", b.Decade)
}

// BirthYears returns the inclusive birth-year range for the band in the given year.
// For the open band the lower bound is zero.
func (b AgeBand) BirthYears(year int) (lo, hi int) {
	hi = year - b.Decade
	if b.Open {
		return 0, hi
	}
	return year - b.Decade - 9, hi
}

// ParseAgeBand accepts "30s", "30", "30대", "60s+" and "60대 이상".
func ParseAgeBand(token string) (AgeBand, bool) {
	s := strings.ToLower(strings.TrimSpace(token))
	open := false
	for _, suffix := range []string{"+", " 이상", "이상"} {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			open = true
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSuffix(s, "s"), "대")

	decade, err := strconv.Atoi(s)
	if err != nil || decade < 10 || decade%10 != 0 {
		return AgeBand{}, false
	}
	if decade >= OldestBand {
		return AgeBand{Decade: OldestBand, Open: true}, true
	}
	if open {
		return AgeBand{}, false
	}
	return AgeBand{Decade: decade}, true
}

// BandOf returns the band for a birth year. Ages under 20 fall into "10s".
func BandOf(birthYear, year int) AgeBand {
	age := year - birthYear
	switch {
	case age >= OldestBand:
		return AgeBand{Decade: OldestBand, Open: true}
	case age < 20:
		return AgeBand{Decade: 10}
	default:
		return AgeBand{Decade: age / 10 * 10}
	}
}
