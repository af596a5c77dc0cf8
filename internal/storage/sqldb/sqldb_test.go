package sqldb

import (
	"context"
	"errors"
	"testing"

	"heartprep/internal/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var backtick = Dialect{
	Name:        "test",
	Quote:       QuoteWith("`", "`"),
	Placeholder: QuestionMark,
}

// closer adds the Close that backends normally supply through their wrapper.
type closer struct{ *Repository }

func (closer) Close() {}

var _ storage.Repository = closer{}

func newMock(t *testing.T) (closer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return closer{New(db, "heart_data", backtick)}, mock
}

func TestDialect_SQL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"insert", backtick.InsertSQL("heart_data", []string{"patient_id", "age"}),
			"INSERT INTO `heart_data` (`patient_id`, `age`) VALUES (?, ?)"},
		{"insert fqn", backtick.InsertSQL("db.heart_data", []string{"a"}),
			"INSERT INTO `db`.`heart_data` (`a`) VALUES (?)"},
		{"select", backtick.SelectSQL("heart_data", []string{"age", "mortality"}),
			"SELECT `age`, `mortality` FROM `heart_data`"},
		{"escape", QuoteWith("[", "]")("brack]et"), "[brack]]et]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}
}

func TestLoadRows_CommitsEveryRow(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	const insert = "INSERT INTO `heart_data` (`patient_id`, `age`, `gender`) VALUES (?, ?, ?)"

	mock.ExpectBegin()
	mock.ExpectExec(insert).WithArgs("P1", "45", "M").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs("P2", nil, "F").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	n, err := storage.LoadRows(context.Background(), repo,
		[]string{"patient_id", "age", "gender"},
		[][]any{{"P1", "45", "M"}, {"P2", nil, "F"}}, 0, nil)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRows_RollsBackOnInsertError(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	const insert = "INSERT INTO `heart_data` (`patient_id`) VALUES (?)"

	mock.ExpectBegin()
	mock.ExpectExec(insert).WithArgs("P1").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs("P2").WillReturnError(errors.New("data too long"))
	mock.ExpectRollback()

	n, err := storage.LoadRows(context.Background(), repo,
		[]string{"patient_id"}, [][]any{{"P1"}, {"P2"}, {"P3"}}, 0, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "data too long")
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectColumns(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT `age`, `mortality` FROM `heart_data`").
		WillReturnRows(sqlmock.NewRows([]string{"age", "mortality"}).
			AddRow("61", "1").
			AddRow(nil, "0"))

	rs, err := repo.SelectColumns(context.Background(), []string{"age", "mortality"})
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "mortality"}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "61", rs.Rows[0][0])
	assert.Nil(t, rs.Rows[1][0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectColumns_Errors(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	_, err := repo.SelectColumns(context.Background(), nil)
	require.Error(t, err)

	mock.ExpectQuery("SELECT `nope` FROM `heart_data`").WillReturnError(errors.New("unknown column 'nope'"))
	_, err = repo.SelectColumns(context.Background(), []string{"nope"})
	require.ErrorContains(t, err, "test: select: unknown column")
}

func TestColumns(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT * FROM `heart_data` WHERE 1=0").
		WillReturnRows(sqlmock.NewRows([]string{"data_id", "patient_id", "age"}))

	cols, err := repo.Columns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"data_id", "patient_id", "age"}, cols)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExec(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	mock.ExpectExec("DELETE FROM heart_data").WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, repo.Exec(context.Background(), "DELETE FROM heart_data"))
	require.NoError(t, repo.Exec(context.Background(), "   "), "blank statements are skipped")
	require.NoError(t, mock.ExpectationsWereMet())
}
