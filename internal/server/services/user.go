package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fastid/fastid/internal/common"
	"github.com/fastid/fastid/internal/dbx"
	"github.com/fastid/fastid/internal/logging"
	"github.com/fastid/fastid/internal/server/models"
	"github.com/fastid/fastid/internal/server/repositories/repomanager"
)

// UserService manages accounts outside the setup flow.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	log         logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher, log logging.Logger) *UserService {
	return &UserService{db: db, repomanager: m, hasher: hasher, log: log}
}

// Create registers a user. A taken email yields common.ErrConflict.
func (s *UserService) Create(ctx context.Context, email, password string, isAdmin bool) (user *models.User, err error) {
	ctx, span := startSpan(ctx, "UserService.Create")
	defer func() { endSpan(span, err) }()

	email = NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		if errors.Is(err, common.ErrHashingFailure) {
			s.log.Error(ctx, "password hashing failed", "error", err)
		}
		return nil, err
	}

	user, err = s.repomanager.Users(s.db).Create(ctx, &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return nil, storageErr("create user", err)
	}

	s.log.Info(ctx, "user created", "user_id", user.ID, "is_admin", isAdmin)
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	return s.get(ctx, func(ctx context.Context) (*models.User, error) {
		return repo.GetByEmail(ctx, NormalizeEmail(email))
	})
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	return s.get(ctx, func(ctx context.Context) (*models.User, error) {
		return repo.GetByID(ctx, id)
	})
}

func (s *UserService) get(ctx context.Context, fn func(ctx context.Context) (*models.User, error)) (*models.User, error) {
	var user *models.User
	err := dbx.ReadRetry(ctx, s.repomanager.Dialect(), func(ctx context.Context) error {
		var err error
		user, err = fn(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, storageErr("get user", err)
	}
	return user, nil
}
