// Package relational opens the panels database (PostgreSQL via pgx, or SQLite) behind database/sql.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/kailas-cloud/panelscope/internal/db"
	"github.com/kailas-cloud/panelscope/internal/domain/search/predicate"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds connection parameters.
type Config struct {
	Driver           string
	DSN              string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	StatementTimeout time.Duration
}

// Pool is a database/sql pool plus the placeholder dialect of its driver.
type Pool struct {
	db      *sql.DB
	dialect predicate.Dialect
}

// Open creates a pool. The connection is not verified; call WaitForReady.
func Open(cfg Config) (*Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	var (
		sqlDB   *sql.DB
		dialect predicate.Dialect
	)
	switch cfg.Driver {
	case DriverPostgres, "":
		connCfg, err := pgx.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse dsn: %w", err)
		}
		if cfg.StatementTimeout > 0 {
			connCfg.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
		}
		sqlDB = stdlib.OpenDB(*connCfg)
		dialect = predicate.Postgres
	case DriverSQLite:
		var err error
		sqlDB, err = sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if strings.Contains(cfg.DSN, ":memory:") {
			// every connection would get its own empty database
			cfg.MaxOpenConns = 1
		}
		dialect = predicate.SQLite
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &Pool{db: sqlDB, dialect: dialect}, nil
}

// Dialect returns the placeholder style of the driver.
func (p *Pool) Dialect() predicate.Dialect { return p.dialect }

// Query runs a read query. Errors are wrapped in *db.Error.
func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return rows, nil
}

// Ping checks connectivity.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the pool. In-flight queries finish first.
func (p *Pool) Close() {
	_ = p.db.Close()
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (p *Pool) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.Ping(ctx); err == nil {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for relational store: %w", ctx.Err())
		case <-ticker.C:
			if err := p.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}
