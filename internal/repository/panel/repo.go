// Package panel reads panel rows from the relational store.
package panel

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/search/predicate"
)

// DefaultChunk bounds the identifiers bound into one IN list.
const DefaultChunk = 500

// pool is the consumer interface for the relational store (ISP).
type pool interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Dialect() predicate.Dialect
}

// Repo reads the panels table.
type Repo struct {
	pool     pool
	table    string
	idColumn string
	chunk    int
}

// New creates a panel repository over table, keyed by idColumn.
func New(p pool, table, idColumn string) (*Repo, error) {
	if !isIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if !isIdentifier(idColumn) {
		return nil, fmt.Errorf("invalid id column %q", idColumn)
	}
	return &Repo{pool: p, table: table, idColumn: idColumn, chunk: DefaultChunk}, nil
}

// WithChunk overrides the IN-list chunk size. Non-positive values are ignored.
func (r *Repo) WithChunk(n int) *Repo {
	if n > 0 {
		r.chunk = n
	}
	return r
}

// Dialect exposes the placeholder style for the predicate compiler.
func (r *Repo) Dialect() predicate.Dialect { return r.pool.Dialect() }

// QueryIDs returns identifiers matching the predicate in ascending order.
func (r *Repo) QueryIDs(ctx context.Context, pred predicate.Predicate) ([]string, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", r.idColumn, r.table)
	if !pred.IsEmpty() {
		q += " WHERE " + pred.Clause
	}
	q += " ORDER BY " + r.idColumn

	rows, err := r.pool.Query(ctx, q, pred.Args...)
	if err != nil {
		return nil, fmt.Errorf("query panel ids: %w: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan panel id: %w: %w", domain.ErrStoreUnavailable, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate panel ids: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return ids, nil
}

// FetchRows loads the given columns for the identifiers. Missing identifiers are
// absent from the result; NULL values are omitted from a row.
func (r *Repo) FetchRows(ctx context.Context, ids, columns []string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, c := range columns {
		if !isIdentifier(c) {
			return nil, fmt.Errorf("invalid column %q", c)
		}
	}

	for start := 0; start < len(ids); start += r.chunk {
		end := min(start+r.chunk, len(ids))
		if err := r.fetchChunk(ctx, ids[start:end], columns, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repo) fetchChunk(ctx context.Context, ids, columns []string, out map[string]map[string]string) error {
	b := predicate.NewBuilder(r.pool.Dialect())
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	b.And(fmt.Sprintf("%s IN (%s)", r.idColumn, b.BindAll(args)))
	pred := b.Build()

	selectCols := append([]string{r.idColumn}, columns...)
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(selectCols, ", "), r.table, pred.Clause)

	rows, err := r.pool.Query(ctx, q, pred.Args...)
	if err != nil {
		return fmt.Errorf("fetch panel rows: %w: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	vals := make([]sql.NullString, len(selectCols))
	dest := make([]any, len(selectCols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan panel row: %w: %w", domain.ErrStoreUnavailable, err)
		}
		row := make(map[string]string, len(columns))
		for i, c := range columns {
			if v := vals[i+1]; v.Valid {
				row[c] = v.String
			}
		}
		out[vals[0].String] = row
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate panel rows: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
