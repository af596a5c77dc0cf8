// Package mysql provides the MySQL storage backend. Rows are written with
// one parameterized INSERT each inside a single transaction.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"heartprep/internal/storage"
	"heartprep/internal/storage/sqldb"

	"github.com/go-sql-driver/mysql"
)

// Dialect quotes identifiers with backticks and binds with '?'.
var Dialect = sqldb.Dialect{
	Name:        "mysql",
	Quote:       sqldb.QuoteWith("`", "`"),
	Placeholder: sqldb.QuestionMark,
}

// Config holds MySQL repository configuration.
type Config struct {
	DSN   string // go-sql-driver DSN, e.g. "root:pw@tcp(localhost:3306)/ai_health_prototype"
	Table string
}

// NewRepository opens and pings a MySQL connection pool and returns the
// repository plus its cleanup func.
func NewRepository(ctx context.Context, cfg Config) (*sqldb.Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(connector)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return sqldb.New(db, cfg.Table, Dialect), func() { _ = db.Close() }, nil
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adds Close to the shared database/sql repository.
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
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
