package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastid/fastid/internal/common"
	"github.com/fastid/fastid/internal/dbx"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Get(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM config WHERE key = $1`

	var value string
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return value, nil
}

func (r *SQLRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), key, value); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Lock writes the row without changing it; the write is what takes the lock,
// which a plain SELECT ... FOR UPDATE cannot do for a row that does not exist yet.
func (r *SQLRepository) Lock(ctx context.Context, key string) error {
	query := `
		INSERT INTO config (key, value) VALUES ($1, '')
		ON CONFLICT (key) DO UPDATE SET value = config.value
	`
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), key); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
