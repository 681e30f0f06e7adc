// Package predicate holds compiled, parameterized relational predicates.
package predicate

import (
	"strconv"
	"strings"
)

// Dialect controls placeholder syntax.
type Dialect int

const (
	// Postgres uses $1, $2, ...
	Postgres Dialect = iota + 1
	// SQLite uses ?.
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Placeholder returns the n-th (1-based) bind marker.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Predicate is a WHERE clause body with its bound arguments. Values never appear in Clause.
type Predicate struct {
	Clause string
	Args   []any
}

// IsEmpty reports whether the predicate constrains nothing.
func (p Predicate) IsEmpty() bool { return p.Clause == "" }

// Builder accumulates AND-ed clauses and numbers placeholders.
type Builder struct {
	dialect Dialect
	clauses []string
	args    []any
}

// NewBuilder creates a builder for the dialect.
func NewBuilder(d Dialect) *Builder {
	return &Builder{dialect: d}
}

// Bind records an argument and returns its placeholder.
func (b *Builder) Bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

// BindAll binds every value and returns the comma-separated placeholders.
func (b *Builder) BindAll(vs []any) string {
	ph := make([]string, len(vs))
	for i, v := range vs {
		ph[i] = b.Bind(v)
	}
	return strings.Join(ph, ", ")
}

// And appends a clause.
func (b *Builder) And(clause string) {
	b.clauses = append(b.clauses, clause)
}

// Build returns the AND of all clauses.
func (b *Builder) Build() Predicate {
	if len(b.clauses) == 0 {
		return Predicate{}
	}
	if len(b.clauses) == 1 {
		return Predicate{Clause: b.clauses[0], Args: b.args}
	}
	parts := make([]string, len(b.clauses))
	for i, c := range b.clauses {
		parts[i] = "(" + c + ")"
	}
	return Predicate{Clause: strings.Join(parts, " AND "), Args: b.args}
}
