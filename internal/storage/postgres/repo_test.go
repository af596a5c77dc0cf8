package postgres

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"heartprep/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePool records Exec statements and fails Begin/Query on demand.
type fakePool struct {
	execs    []string
	beginErr error
}

func (f *fakePool) Begin(context.Context) (pgx.Tx, error) { return nil, f.beginErr }
func (f *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("relation does not exist")
}
func (f *fakePool) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}
func (f *fakePool) Close() {}

func TestSQLRendering(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, got, want string
	}{
		{"insert", insertSQL("heart_data", []string{"patient_id", "age"}),
			`INSERT INTO "heart_data" ("patient_id", "age") VALUES ($1, $2)`},
		{"insert schema", insertSQL("public.heart_data", []string{"a"}),
			`INSERT INTO "public"."heart_data" ("a") VALUES ($1)`},
		{"select", selectSQL("heart_data", []string{"data_id", "mortality"}),
			`SELECT "data_id", "mortality" FROM "heart_data"`},
		{"escape", pgIdent(`we"ird`), `"we""ird"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}
}

// TestAdapterRegistrationAndClose stubs newRepository so storage.New routes
// through init() registration without a server.
func TestAdapterRegistrationAndClose(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })

	var gotCfg Config
	var closed int32
	fp := &fakePool{}
	newRepository = func(_ context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return &Repository{pool: fp, cfg: cfg}, func() { atomic.AddInt32(&closed, 1) }, nil
	}

	want := storage.Config{
		Kind:  "postgres",
		DSN:   "postgres://u:p@localhost:5432/heart?sslmode=disable",
		Table: "public.heart_data",
	}
	repo, err := storage.New(context.Background(), want)
	require.NoError(t, err)
	assert.Equal(t, want.DSN, gotCfg.DSN)
	assert.Equal(t, want.Table, gotCfg.Table)

	require.NoError(t, repo.Exec(context.Background(), "CREATE TABLE x (a int)"))
	require.NoError(t, repo.Exec(context.Background(), "  "))
	assert.Equal(t, []string{"CREATE TABLE x (a int)"}, fp.execs)

	repo.Close()
	repo.Close()
	assert.Equal(t, int32(1), atomic.LoadInt32(&closed))
}

func TestRepository_Errors(t *testing.T) {
	t.Parallel()

	r := &Repository{pool: &fakePool{beginErr: errors.New("too many clients")}, cfg: Config{Table: "heart_data"}}

	_, err := r.Begin(context.Background())
	require.ErrorContains(t, err, "postgres: begin: too many clients")

	_, err = storage.LoadRows(context.Background(), &wrappedRepo{Repository: r}, []string{"a"}, [][]any{{1}}, 0, nil)
	require.Error(t, err)

	_, err = r.SelectColumns(context.Background(), []string{"age"})
	require.ErrorContains(t, err, "relation does not exist")

	_, err = r.SelectColumns(context.Background(), nil)
	require.Error(t, err)
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{})
	require.EqualError(t, err, "postgres: DSN must not be empty")
}
