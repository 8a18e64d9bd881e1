package settings

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastid/fastid/internal/common"
	"github.com/fastid/fastid/internal/dbx"
)

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLRepository(db, dbx.Postgres{}), mock
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT\s+value\s+FROM\s+config\s+WHERE\s+key\s*=\s*\$1`).
		WithArgs("is_setup").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("1"))

	v, err := repo.Get(context.Background(), "is_setup")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+config`).WithArgs("is_setup").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "is_setup")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSet(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+config.*ON\s+CONFLICT\s+\(key\)\s+DO\s+UPDATE\s+SET\s+value\s*=\s*excluded\.value`).
		WithArgs("is_setup", "1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Set(context.Background(), "is_setup", "1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLock(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+config.*ON\s+CONFLICT\s+\(key\)\s+DO\s+UPDATE\s+SET\s+value\s*=\s*config\.value`).
		WithArgs("is_setup").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Lock(context.Background(), "is_setup"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSet_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`INSERT\s+INTO\s+config`).WillReturnError(errors.New("db err"))

	err := repo.Set(context.Background(), "k", "v")
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db err`, err.Error())
}
