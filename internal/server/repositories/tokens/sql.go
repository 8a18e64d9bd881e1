package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastid/fastid/internal/common"
	"github.com/fastid/fastid/internal/dbx"
	"github.com/fastid/fastid/internal/server/models"
)

// SQLRepository stores token pairs over dbx.DBTX (a *sql.DB or *sql.Tx).
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

const selectPair = `
		SELECT token_id, access_token, refresh_token, user_id, audience,
		       expires_at, refresh_expires_at, created_at
		FROM tokens
		WHERE token_id = $1`

// Create inserts pair. A duplicate token_id yields common.ErrConflict.
func (r *SQLRepository) Create(ctx context.Context, pair *models.TokenPair) (*models.TokenPair, error) {
	query := `
		INSERT INTO tokens (token_id, access_token, refresh_token, user_id, audience,
		                    expires_at, refresh_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	pair.ExpiresAt = dbx.Time(pair.ExpiresAt)
	pair.RefreshExpiresAt = dbx.Time(pair.RefreshExpiresAt)
	pair.CreatedAt = dbx.Time(pair.CreatedAt)

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		pair.TokenID, pair.AccessToken, pair.RefreshToken, pair.UserID, pair.Audience,
		pair.ExpiresAt, pair.RefreshExpiresAt, pair.CreatedAt)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return pair, nil
}

func (r *SQLRepository) GetByID(ctx context.Context, tokenID string) (*models.TokenPair, error) {
	return r.get(ctx, selectPair, tokenID)
}

func (r *SQLRepository) GetByIDForUpdate(ctx context.Context, tokenID string) (*models.TokenPair, error) {
	return r.get(ctx, selectPair+r.dialect.LockSuffix(), tokenID)
}

func (r *SQLRepository) get(ctx context.Context, query, tokenID string) (*models.TokenPair, error) {
	p := &models.TokenPair{}
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), tokenID).Scan(
		&p.TokenID, &p.AccessToken, &p.RefreshToken, &p.UserID, &p.Audience,
		&p.ExpiresAt, &p.RefreshExpiresAt, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *SQLRepository) DeleteByID(ctx context.Context, tokenID string) (bool, error) {
	query := `
		DELETE FROM tokens
		WHERE token_id = $1
	`
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), tokenID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM tokens
		WHERE refresh_expires_at < $1
	`
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), dbx.Time(before))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
