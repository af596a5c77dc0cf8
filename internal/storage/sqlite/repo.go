// Package sqlite provides the SQLite storage backend on modernc.org/sqlite.
// It needs no server, which makes it the backend of choice for local runs
// and end-to-end tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"heartprep/internal/storage"
	"heartprep/internal/storage/sqldb"

	_ "modernc.org/sqlite"
)

// Dialect quotes identifiers with backticks and binds with '?'. SQLite reads
// a double-quoted name that matches no column as a string literal; a
// backticked one is always an identifier, so unknown columns fail.
var Dialect = sqldb.Dialect{
	Name:        "sqlite",
	Quote:       sqldb.QuoteWith("`", "`"),
	Placeholder: sqldb.QuestionMark,
}

// Config holds SQLite repository configuration.
type Config struct {
	// DSN is a file path or URI, e.g. "heart.db" or "file:heart.db?cache=shared".
	DSN   string
	Table string
}

// Open opens dsn with the modernc driver. An in-memory database is pinned
// to a single connection so every statement sees the same data.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// NewRepository opens and pings dsn and returns the repository plus its
// cleanup func.
func NewRepository(ctx context.Context, cfg Config) (*sqldb.Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	return sqldb.New(db, cfg.Table, Dialect), func() { _ = db.Close() }, nil
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

type wrappedRepo struct {
	*sqldb.Repository
	closeFn func()
}

// Close releases the database. Safe to call more than once.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
		w.closeFn = nil
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
