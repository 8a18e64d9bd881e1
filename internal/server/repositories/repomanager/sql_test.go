package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastid/fastid/internal/common"
	"github.com/fastid/fastid/internal/dbx"
	"github.com/fastid/fastid/internal/server/models"
)

func TestFactories_ReturnRepos(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var m RepositoryManager = NewSQLRepositoryManager(dbx.Postgres{})

	assert.NotNil(t, m.Users(db))
	assert.NotNil(t, m.Tokens(db))
	assert.NotNil(t, m.Settings(db))
	assert.Equal(t, dbx.Postgres{}, m.Dialect())
}

func TestRunMigrations_PicksDialectDir(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, NewSQLRepositoryManager(dbx.Postgres{}).RunMigrations(context.Background(), db))
	assert.Equal(t, "postgres", gotDir)

	require.NoError(t, NewSQLRepositoryManager(dbx.SQLite{}).RunMigrations(context.Background(), db))
	assert.Equal(t, "sqlite", gotDir)
}

func TestRunMigrations_Error(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	err = NewSQLRepositoryManager(dbx.Postgres{}).RunMigrations(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func openSQLite(t *testing.T) (*sql.DB, *SQLRepositoryManager) {
	t.Helper()
	db, d, err := dbx.Open(dbx.DriverSQLite, filepath.Join(t.TempDir(), "fastid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := NewSQLRepositoryManager(d)
	require.NoError(t, m.RunMigrations(context.Background(), db))
	return db, m
}

func TestSQLite_Users(t *testing.T) {
	db, m := openSQLite(t)
	ctx := context.Background()
	repo := m.Users(db)

	created := time.Date(2030, 5, 6, 7, 8, 9, 0, time.UTC)
	_, err := repo.Create(ctx, &models.User{ID: "u1", Email: "a@example.com", PasswordHash: "h", IsAdmin: true, CreatedAt: created})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.User{ID: "u2", Email: "a@example.com", PasswordHash: "h", CreatedAt: created})
	require.ErrorIs(t, err, common.ErrConflict)

	byEmail, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)
	assert.True(t, byEmail.IsAdmin)
	assert.True(t, byEmail.CreatedAt.Equal(created))

	byID, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", byID.Email)

	_, err = repo.GetByID(ctx, "nope")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLite_Tokens(t *testing.T) {
	db, m := openSQLite(t)
	ctx := context.Background()
	repo := m.Tokens(db)

	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, refreshEnd := range []time.Time{now.Add(-time.Hour), now.Add(-time.Second), now.Add(time.Hour)} {
		_, err := repo.Create(ctx, &models.TokenPair{
			TokenID:          []string{"t1", "t2", "t3"}[i],
			AccessToken:      "a",
			RefreshToken:     "d",
			UserID:           "u1",
			Audience:         "internal",
			ExpiresAt:        now,
			RefreshExpiresAt: refreshEnd,
			CreatedAt:        now,
		})
		require.NoError(t, err)
	}

	p, err := repo.GetByIDForUpdate(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, "internal", p.Audience)
	assert.True(t, p.RefreshExpiresAt.Equal(now.Add(time.Hour)))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	removed, err := repo.DeleteByID(ctx, "t3")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.DeleteByID(ctx, "t3")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = repo.GetByID(ctx, "t3")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLite_Settings(t *testing.T) {
	db, m := openSQLite(t)
	ctx := context.Background()
	repo := m.Settings(db)

	_, err := repo.Get(ctx, common.SetupKey)
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, repo.Lock(ctx, common.SetupKey))
	v, err := repo.Get(ctx, common.SetupKey)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, repo.Set(ctx, common.SetupKey, common.SetupDone))
	require.NoError(t, repo.Lock(ctx, common.SetupKey))

	v, err = repo.Get(ctx, common.SetupKey)
	require.NoError(t, err)
	assert.Equal(t, common.SetupDone, v)
}
