// Package mssql provides the Microsoft SQL Server storage backend using
// go-mssqldb through database/sql.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"heartprep/internal/storage"
	"heartprep/internal/storage/sqldb"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// Dialect brackets identifiers and binds with @p1, @p2, ...
var Dialect = sqldb.Dialect{
	Name:        "mssql",
	Quote:       sqldb.QuoteWith("[", "]"),
	Placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
}

// Config holds MSSQL repository configuration.
type Config struct {
	DSN   string
	Table string // e.g. "dbo.heart_data"
}

// NewRepository validates the DSN, opens and pings the pool, and returns the
// repository plus its cleanup func.
func NewRepository(ctx context.Context, cfg Config) (*sqldb.Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mssql: DSN must not be empty")
	}
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return sqldb.New(db, cfg.Table, Dialect), func() { _ = db.Close() }, nil
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

type wrappedRepo struct {
	*sqldb.Repository
	closeFn func()
}

// Close releases the pool. Safe to call more than once.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
		w.closeFn = nil
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
