package mysql

import (
	"context"
	"testing"

	"heartprep/internal/storage"
	"heartprep/internal/storage/sqldb"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAdapterRegistrationAndClose routes storage.New through the stubbed hook
// and checks that Close reaches the cleanup func exactly once.
func TestAdapterRegistrationAndClose(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	var gotCfg Config
	closed := 0
	newRepository = func(_ context.Context, cfg Config) (*sqldb.Repository, func(), error) {
		gotCfg = cfg
		return sqldb.New(db, cfg.Table, Dialect), func() { closed++ }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{
		Kind:  "mysql",
		DSN:   "root:pw@tcp(localhost:3306)/ai_health_prototype",
		Table: "heart_data",
	})
	require.NoError(t, err)
	assert.Equal(t, "heart_data", gotCfg.Table)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `heart_data` (`patient_id`, `marital_status`) VALUES (?, ?)").
		WithArgs("P1", "Married").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	n, err := storage.LoadRows(context.Background(), repo,
		[]string{"patient_id", "marital_status"}, [][]any{{"P1", "Married"}}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())

	repo.Close()
	repo.Close()
	assert.Equal(t, 1, closed)
}

func TestNewRepository_BadDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{DSN: ""})
	require.Error(t, err)

	_, _, err = NewRepository(context.Background(), Config{DSN: "root:pw@tcp(localhost:3306"})
	require.ErrorContains(t, err, "mysql dsn")
}
