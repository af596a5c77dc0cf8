// Package postgres implements the Postgres storage backend with pgx v5.
// Unlike the database/sql backends it talks to pgxpool directly, so inserts
// bind $n parameters and reads return pgx-decoded values.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"heartprep/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN   string // connection string for pgxpool
	Table string // optionally schema-qualified, e.g. "public.heart_data"
}

// pool is the subset of *pgxpool.Pool the repository uses.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Repository is a Postgres-backed storage.Repository.
type Repository struct {
	pool pool
	cfg  Config
}

// NewRepository constructs a Repository, verifies connectivity, and returns
// a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	p, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repository{pool: p, cfg: cfg}, p.Close, nil
}

// Begin implements storage.Repository.
func (r *Repository) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &pgTx{tx: tx, table: r.cfg.Table}, nil
}

// Columns implements storage.Repository.
func (r *Repository) Columns(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT * FROM "+pgFQN(r.cfg.Table)+" WHERE 1=0")
	if err != nil {
		return nil, fmt.Errorf("postgres: columns: %w", err)
	}
	fds := rows.FieldDescriptions()
	names := make([]string, len(fds))
	for i, fd := range fds {
		names[i] = fd.Name
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: columns: %w", err)
	}
	return names, nil
}

// SelectColumns implements storage.Repository.
func (r *Repository) SelectColumns(ctx context.Context, columns []string) (*storage.ResultSet, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("postgres: select: no columns")
	}
	rows, err := r.pool.Query(ctx, selectSQL(r.cfg.Table, columns))
	if err != nil {
		return nil, fmt.Errorf("postgres: select: %w", err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	rs := &storage.ResultSet{Columns: make([]string, len(fds))}
	for i, fd := range fds {
		rs.Columns[i] = fd.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: row %d: %w", len(rs.Rows)+1, err)
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}
	return rs, nil
}

// Exec implements storage.Repository.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}

type pgTx struct {
	tx    pgx.Tx
	table string
}

func (t *pgTx) Insert(ctx context.Context, columns []string, values []any) error {
	if _, err := t.tx.Exec(ctx, insertSQL(t.table, columns), values...); err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}

func insertSQL(table string, columns []string) string {
	marks := make([]string, len(columns))
	for i := range columns {
		marks[i] = "$" + strconv.Itoa(i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgFQN(table), strings.Join(mapIdent(columns), ", "), strings.Join(marks, ", "))
}

func selectSQL(table string, columns []string) string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(mapIdent(columns), ", "), pgFQN(table))
}

// pgIdent quotes one identifier segment.
func pgIdent(s string) string {
	return pgx.Identifier{s}.Sanitize()
}

// pgFQN quotes a possibly schema-qualified name.
func pgFQN(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
