package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx records inserts and lifecycle calls.
type fakeTx struct {
	inserted   [][]any
	failAt     int // 1-based row index that fails; 0 = never
	commitErr  error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Insert(_ context.Context, _ []string, values []any) error {
	if f.failAt > 0 && len(f.inserted)+1 == f.failAt {
		return errors.New("duplicate key")
	}
	f.inserted = append(f.inserted, values)
	return nil
}

func (f *fakeTx) Commit(context.Context) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if f.committed {
		return nil
	}
	f.rolledBack = true
	return nil
}

type fakeRepo struct {
	tx       *fakeTx
	beginErr error
	closed   bool
}

func (f *fakeRepo) Begin(context.Context) (Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func (f *fakeRepo) Columns(context.Context) ([]string, error) { return nil, nil }

func (f *fakeRepo) SelectColumns(context.Context, []string) (*ResultSet, error) {
	return &ResultSet{}, nil
}

func (f *fakeRepo) Exec(context.Context, string) error { return nil }
func (f *fakeRepo) Close()                             { f.closed = true }

func rowsN(n int) [][]any {
	out := make([][]any, n)
	for i := range out {
		out[i] = []any{i + 1, "x"}
	}
	return out
}

func TestRegisterAndNew(t *testing.T) {
	t.Parallel()

	Register("fake-ok", func(context.Context, Config) (Repository, error) {
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "fake-ok"})
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Contains(t, ListKinds(), "fake-ok")
}

func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	require.EqualError(t, err, "unsupported storage.kind=does-not-exist")
}

func TestRegister_Override(t *testing.T) {
	t.Parallel()

	calls := 0
	Register("fake-override", func(context.Context, Config) (Repository, error) {
		calls = 1
		return &fakeRepo{}, nil
	})
	Register("fake-override", func(context.Context, Config) (Repository, error) {
		calls = 2
		return &fakeRepo{}, nil
	})
	_, err := New(context.Background(), Config{Kind: "fake-override"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

// TestLoadRows_InsertCountEqualsRows checks one insert per row, a single
// commit, and progress callbacks at the configured interval.
func TestLoadRows_InsertCountEqualsRows(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{}
	var seen []int64
	n, err := LoadRows(context.Background(), &fakeRepo{tx: tx}, []string{"id", "v"}, rowsN(7), 3,
		func(executed int64) { seen = append(seen, executed) })

	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Len(t, tx.inserted, 7)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
	assert.Equal(t, []int64{3, 6}, seen)
}

func TestLoadRows_Empty(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{}
	n, err := LoadRows(context.Background(), &fakeRepo{tx: tx}, []string{"id"}, nil, 0, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, tx.committed)
}

// TestLoadRows_FailureRollsBack ensures a mid-run error stops further inserts
// and nothing is committed.
func TestLoadRows_FailureRollsBack(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{failAt: 3}
	n, err := LoadRows(context.Background(), &fakeRepo{tx: tx}, []string{"id", "v"}, rowsN(5), 0, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert row 3")
	assert.Zero(t, n)
	assert.Len(t, tx.inserted, 2, "rows after the failure are not attempted")
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestLoadRows_WidthMismatch(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{}
	_, err := LoadRows(context.Background(), &fakeRepo{tx: tx}, []string{"a", "b", "c"}, rowsN(1), 0, nil)
	require.Error(t, err)
	assert.True(t, tx.rolledBack)
}

func TestLoadRows_CommitError(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{commitErr: errors.New("lost connection")}
	n, err := LoadRows(context.Background(), &fakeRepo{tx: tx}, []string{"id", "v"}, rowsN(2), 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
	assert.Zero(t, n)
}

func TestLoadRows_BeginError(t *testing.T) {
	t.Parallel()

	_, err := LoadRows(context.Background(), &fakeRepo{beginErr: errors.New("refused")}, []string{"id"}, rowsN(1), 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin: refused")
}

func TestLoadRows_Guards(t *testing.T) {
	t.Parallel()

	_, err := LoadRows(context.Background(), nil, []string{"id"}, nil, 0, nil)
	require.Error(t, err)

	_, err = LoadRows(context.Background(), &fakeRepo{tx: &fakeTx{}}, nil, nil, 0, nil)
	require.Error(t, err)
}
