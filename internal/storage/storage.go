// Package storage contains the storage-agnostic contracts used by the load
// and prepare jobs, a factory that concrete backends register with, and the
// transactional row loader shared by all of them.
//
// Backends live in subpackages (mysql, postgres, mssql, sqlite) and register
// themselves in init; blank-import heartprep/internal/storage/all to enable
// every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the backend-agnostic connection description handed to factories.
type Config struct {
	// Kind selects the backend ("mysql", "postgres", "mssql", "sqlite").
	Kind string
	// DSN is passed to the driver verbatim.
	DSN string
	// Table is the (optionally schema-qualified) table read and written.
	Table string
}

// ResultSet is a fully materialized query result. Values are whatever the
// driver produced (string, []byte, int64, float64, time.Time, nil, …).
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Repository is one open connection to the configured table.
type Repository interface {
	// Begin starts a transaction for row inserts.
	Begin(ctx context.Context) (Tx, error)
	// Columns lists the table's column names without reading any rows.
	Columns(ctx context.Context) ([]string, error)
	// SelectColumns reads the named columns of every row in the table, with
	// no filtering or ordering.
	SelectColumns(ctx context.Context, columns []string) (*ResultSet, error)
	// Exec runs an arbitrary statement, typically DDL in tests and tooling.
	Exec(ctx context.Context, sql string) error
	// Close releases the connection. It is safe to call more than once.
	Close()
}

// Tx is an open insert transaction.
type Tx interface {
	// Insert issues exactly one INSERT for values, aligned to columns.
	Insert(ctx context.Context, columns []string, values []any) error
	Commit(ctx context.Context) error
	// Rollback aborts the transaction. Calling it after Commit is a no-op.
	Rollback(ctx context.Context) error
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// ListKinds returns the registered kinds in sorted order.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
