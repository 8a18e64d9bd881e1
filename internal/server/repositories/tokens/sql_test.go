package tokens

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastid/fastid/internal/common"
	"github.com/fastid/fastid/internal/dbx"
	"github.com/fastid/fastid/internal/server/models"
)

func newRepoWithMock(t *testing.T, d dbx.Dialect) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLRepository(db, d), mock
}

var pairColumns = []string{"token_id", "access_token", "refresh_token", "user_id", "audience",
	"expires_at", "refresh_expires_at", "created_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres{})
	now := time.Now()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7,\s*\$8\)`).
		WithArgs("tid", "access", "digest", "uid", "internal", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p, err := repo.Create(context.Background(), &models.TokenPair{
		TokenID: "tid", AccessToken: "access", RefreshToken: "digest", UserID: "uid", Audience: "internal",
		ExpiresAt: now.Add(time.Minute), RefreshExpiresAt: now.Add(time.Hour), CreatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, p.CreatedAt.Location())
	assert.Zero(t, p.CreatedAt.Nanosecond())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Conflict(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres{})
	mock.ExpectExec(`INSERT\s+INTO\s+tokens`).WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.TokenPair{TokenID: "tid"})
	require.ErrorIs(t, err, common.ErrConflict)
}

func TestGetByID_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres{})
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`(?s)SELECT\s+token_id,.*FROM\s+tokens\s+WHERE\s+token_id\s*=\s*\$1$`).
		WithArgs("tid").
		WillReturnRows(sqlmock.NewRows(pairColumns).
			AddRow("tid", "access", "digest", "uid", "internal", now.Add(time.Minute), now.Add(time.Hour), now))

	p, err := repo.GetByID(context.Background(), "tid")
	require.NoError(t, err)
	assert.Equal(t, "uid", p.UserID)
	assert.Equal(t, "digest", p.RefreshToken)
	assert.True(t, p.RefreshExpiresAt.Equal(now.Add(time.Hour)))
}

func TestGetByIDForUpdate_LocksOnPostgres(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres{})

	mock.ExpectQuery(`(?s)FROM\s+tokens\s+WHERE\s+token_id\s*=\s*\$1\s+FOR\s+UPDATE$`).
		WithArgs("tid").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByIDForUpdate(context.Background(), "tid")
	require.ErrorIs(t, err, common.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDForUpdate_SQLiteUsesPlainSelect(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.SQLite{})

	mock.ExpectQuery(`(?s)FROM\s+tokens\s+WHERE\s+token_id\s*=\s*\?1$`).
		WithArgs("tid").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByIDForUpdate(context.Background(), "tid")
	require.ErrorIs(t, err, common.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres{})
	mock.ExpectQuery(`FROM\s+tokens`).WillReturnError(errors.New("db err"))

	_, err := repo.GetByID(context.Background(), "tid")
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db err`, err.Error())
}

func TestDeleteByID(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"row removed", 1, true},
		{"already gone", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t, dbx.Postgres{})
			mock.ExpectExec(`(?s)DELETE\s+FROM\s+tokens\s+WHERE\s+token_id\s*=\s*\$1`).
				WithArgs("tid").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.DeleteByID(context.Background(), "tid")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeleteByID_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres{})
	mock.ExpectExec(`DELETE\s+FROM\s+tokens`).WillReturnError(errors.New("db err"))

	_, err := repo.DeleteByID(context.Background(), "tid")
	require.Error(t, err)
}

func TestDeleteExpired(t *testing.T) {
	repo, mock := newRepoWithMock(t, dbx.Postgres{})
	before := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+tokens\s+WHERE\s+refresh_expires_at\s*<\s*\$1`).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), before)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
