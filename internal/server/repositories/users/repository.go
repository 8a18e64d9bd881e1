// Package users declares and implements the user store.
package users

import (
	"context"

	"github.com/fastid/fastid/internal/server/models"
)

// Repository is the user store. Lookups return common.ErrNotFound when no
// row matches; Create returns common.ErrConflict for a taken email.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}
