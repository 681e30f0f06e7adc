package relational

import (
	"database/sql"

	"github.com/kailas-cloud/panelscope/internal/domain/search/predicate"
)

// NewPoolForTest wraps an existing *sql.DB (test-only).
func NewPoolForTest(sqlDB *sql.DB, d predicate.Dialect) *Pool {
	return &Pool{db: sqlDB, dialect: d}
}

// Exec runs a statement; used by tests to seed fixtures.
func (p *Pool) Exec(query string, args ...any) error {
	_, err := p.db.Exec(query, args...)
	return err
}
