package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastid/fastid/internal/common"
	"github.com/fastid/fastid/internal/cryptox"
	"github.com/fastid/fastid/internal/dbx"
	"github.com/fastid/fastid/internal/logging"
	"github.com/fastid/fastid/internal/server/models"
	"github.com/fastid/fastid/internal/server/repositories/settings"
	"github.com/fastid/fastid/internal/server/repositories/tokens"
	"github.com/fastid/fastid/internal/server/repositories/users"
)

type fakeTokensRepo struct {
	getOut    *models.TokenPair
	getErr    error
	deleted   bool
	deleteErr error
	createErr error
	created   []*models.TokenPair
}

func (f *fakeTokensRepo) Create(ctx context.Context, p *models.TokenPair) (*models.TokenPair, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, p)
	return p, nil
}

func (f *fakeTokensRepo) GetByID(ctx context.Context, id string) (*models.TokenPair, error) {
	return f.getOut, f.getErr
}

func (f *fakeTokensRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.TokenPair, error) {
	return f.getOut, f.getErr
}

func (f *fakeTokensRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	return f.deleted, f.deleteErr
}

func (f *fakeTokensRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, f.deleteErr
}

type fakeRepoManager struct {
	t *fakeTokensRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Dialect() dbx.Dialect                         { return dbx.Postgres{} }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository           { return nil }
func (m *fakeRepoManager) Tokens(db dbx.DBTX) tokens.Repository         { return m.t }
func (m *fakeRepoManager) Settings(db dbx.DBTX) settings.Repository     { return nil }

func newMockTokenService(t *testing.T, repo *fakeTokensRepo) (*TokenService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTokenService(db, &fakeRepoManager{t: repo}, testConfig(), logging.NewNop()), mock
}

func storedPair(secret string) *models.TokenPair {
	return &models.TokenPair{
		TokenID:          uuid.NewString(),
		RefreshToken:     cryptox.Digest(secret),
		UserID:           "u1",
		Audience:         common.AudienceInternal,
		RefreshExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestRefresh_Success_Commits(t *testing.T) {
	old := storedPair("s")
	repo := &fakeTokensRepo{getOut: old, deleted: true}
	svc, mock := newMockTokenService(t, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	pair, err := svc.Refresh(context.Background(), old.TokenID+".s")
	require.NoError(t, err)
	assert.Equal(t, "u1", pair.UserID)
	require.Len(t, repo.created, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_LookupFailure_RollsBack(t *testing.T) {
	repo := &fakeTokensRepo{getErr: errors.New("db error: connection reset")}
	svc, mock := newMockTokenService(t, repo)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Refresh(context.Background(), uuid.NewString()+".s")
	require.ErrorIs(t, err, common.ErrStorageFailure)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_LostDeleteRace_IsInvalid(t *testing.T) {
	old := storedPair("s")
	repo := &fakeTokensRepo{getOut: old, deleted: false}
	svc, mock := newMockTokenService(t, repo)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Refresh(context.Background(), old.TokenID+".s")
	require.ErrorIs(t, err, common.ErrInvalidToken)
	assert.Empty(t, repo.created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_CreateFailure_RollsBack(t *testing.T) {
	old := storedPair("s")
	repo := &fakeTokensRepo{getOut: old, deleted: true, createErr: errors.New("disk full")}
	svc, mock := newMockTokenService(t, repo)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Refresh(context.Background(), old.TokenID+".s")
	require.ErrorIs(t, err, common.ErrStorageFailure)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_Expired_CommitsDeletion(t *testing.T) {
	old := storedPair("s")
	old.RefreshExpiresAt = time.Now().Add(-time.Minute)
	repo := &fakeTokensRepo{getOut: old, deleted: true}
	svc, mock := newMockTokenService(t, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Refresh(context.Background(), old.TokenID+".s")
	require.ErrorIs(t, err, common.ErrExpiredToken)
	assert.Empty(t, repo.created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_BeginFailure(t *testing.T) {
	svc, mock := newMockTokenService(t, &fakeTokensRepo{})
	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	_, err := svc.Refresh(context.Background(), uuid.NewString()+".s")
	require.ErrorIs(t, err, common.ErrStorageFailure)
}

func TestIssue_StorageFailure(t *testing.T) {
	svc, _ := newMockTokenService(t, &fakeTokensRepo{createErr: errors.New("db error: boom")})

	_, err := svc.Issue(context.Background(), "u1", common.AudienceInternal)
	require.ErrorIs(t, err, common.ErrStorageFailure)
}

func TestRevoke_StorageFailure(t *testing.T) {
	svc, _ := newMockTokenService(t, &fakeTokensRepo{deleteErr: errors.New("db error: boom")})

	err := svc.Revoke(context.Background(), "tid")
	require.ErrorIs(t, err, common.ErrStorageFailure)
}
