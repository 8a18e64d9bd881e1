// Package tokens declares and implements the token store.
package tokens

import (
	"context"
	"time"

	"github.com/fastid/fastid/internal/server/models"
)

// Repository is the token store. RefreshToken is persisted as given; callers
// pass the digest of the refresh secret, never the secret itself.
type Repository interface {
	Create(ctx context.Context, pair *models.TokenPair) (*models.TokenPair, error)

	// GetByID returns common.ErrNotFound when the row is absent.
	GetByID(ctx context.Context, tokenID string) (*models.TokenPair, error)

	// GetByIDForUpdate is GetByID that also locks the row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, tokenID string) (*models.TokenPair, error)

	// DeleteByID reports whether a row was removed. A missing row is not an error.
	DeleteByID(ctx context.Context, tokenID string) (bool, error)

	// DeleteExpired removes rows whose refresh window ended before t.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
