// Package sqldb implements storage.Repository on top of database/sql. The
// mysql, mssql and sqlite backends share it and differ only in their Dialect.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"heartprep/internal/storage"
)

// Dialect captures the SQL differences between database/sql backends.
type Dialect struct {
	// Name prefixes error messages, e.g. "mysql".
	Name string
	// Quote quotes a single identifier segment.
	Quote func(ident string) string
	// Placeholder returns the bind marker for the 1-based argument n.
	Placeholder func(n int) string
}

// QuoteFQN quotes every dot-separated segment of name.
func (d Dialect) QuoteFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.Quote(p)
	}
	return strings.Join(parts, ".")
}

// InsertSQL renders the single-row INSERT for columns.
func (d Dialect) InsertSQL(table string, columns []string) string {
	cols := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = d.Quote(c)
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteFQN(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

// SelectSQL renders the projection of columns over the whole table.
func (d Dialect) SelectSQL(table string, columns []string) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = d.Quote(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), d.QuoteFQN(table))
}

// QuoteWith returns a Quote func that wraps identifiers in open/close and
// doubles any embedded close character.
func QuoteWith(open, close string) func(string) string {
	return func(ident string) string {
		return open + strings.ReplaceAll(ident, close, close+close) + close
	}
}

// QuestionMark is the positional placeholder used by MySQL and SQLite.
func QuestionMark(int) string { return "?" }

// Repository is a database/sql-backed storage.Repository minus Close, which
// each backend adds through its wrapper.
type Repository struct {
	db      *sql.DB
	table   string
	dialect Dialect
}

// New wraps an open *sql.DB.
func New(db *sql.DB, table string, d Dialect) *Repository {
	return &Repository{db: db, table: table, dialect: d}
}

// DB exposes the underlying handle, mostly for tests.
func (r *Repository) DB() *sql.DB { return r.db }

// Begin implements storage.Repository.
func (r *Repository) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", r.dialect.Name, err)
	}
	return &sqlTx{tx: tx, r: r}, nil
}

// Columns implements storage.Repository.
func (r *Repository) Columns(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT * FROM "+r.dialect.QuoteFQN(r.table)+" WHERE 1=0")
	if err != nil {
		return nil, fmt.Errorf("%s: columns: %w", r.dialect.Name, err)
	}
	defer rows.Close()
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%s: columns: %w", r.dialect.Name, err)
	}
	return names, rows.Err()
}

// SelectColumns implements storage.Repository. Values are returned exactly
// as the driver produced them.
func (r *Repository) SelectColumns(ctx context.Context, columns []string) (*storage.ResultSet, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%s: select: no columns", r.dialect.Name)
	}
	rows, err := r.db.QueryContext(ctx, r.dialect.SelectSQL(r.table, columns))
	if err != nil {
		return nil, fmt.Errorf("%s: select: %w", r.dialect.Name, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%s: columns: %w", r.dialect.Name, err)
	}
	rs := &storage.ResultSet{Columns: names}
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%s: scan row %d: %w", r.dialect.Name, len(rs.Rows)+1, err)
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", r.dialect.Name, err)
	}
	return rs, nil
}

// Exec implements storage.Repository.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: exec: %w", r.dialect.Name, err)
	}
	return nil
}

type sqlTx struct {
	tx *sql.Tx
	r  *Repository

	// Rendered INSERT for the last column list seen; loads reuse one header.
	lastCols string
	lastSQL  string
}

func (t *sqlTx) Insert(ctx context.Context, columns []string, values []any) error {
	key := strings.Join(columns, "\x00")
	if key != t.lastCols || t.lastSQL == "" {
		t.lastCols = key
		t.lastSQL = t.r.dialect.InsertSQL(t.r.table, columns)
	}
	if _, err := t.tx.ExecContext(ctx, t.lastSQL, values...); err != nil {
		return fmt.Errorf("%s: insert: %w", t.r.dialect.Name, err)
	}
	return nil
}

func (t *sqlTx) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", t.r.dialect.Name, err)
	}
	return nil
}

func (t *sqlTx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%s: rollback: %w", t.r.dialect.Name, err)
	}
	return nil
}
