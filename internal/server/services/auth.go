package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fastid/fastid/internal/common"
	"github.com/fastid/fastid/internal/dbx"
	"github.com/fastid/fastid/internal/logging"
	"github.com/fastid/fastid/internal/server/models"
	"github.com/fastid/fastid/internal/server/repositories/repomanager"
)

// AuthService signs users in and resolves access tokens to users.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *TokenService
	hasher      PasswordHasher
	log         logging.Logger

	dummyMu   sync.Mutex
	dummyHash string
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, tokens *TokenService, hasher PasswordHasher, log logging.Logger) *AuthService {
	return &AuthService{db: db, repomanager: m, tokens: tokens, hasher: hasher, log: log}
}

// SignIn verifies email and password and issues an internal-audience pair.
// An unknown email and a wrong password both yield
// common.ErrInvalidCredentials after a full hash verification.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (pair *models.TokenPair, err error) {
	ctx, span := startSpan(ctx, "AuthService.SignIn")
	defer func() { endSpan(span, err) }()

	email = NormalizeEmail(email)
	repo := s.repomanager.Users(s.db)

	var user *models.User
	err = dbx.ReadRetry(ctx, s.repomanager.Dialect(), func(ctx context.Context) error {
		var err error
		user, err = repo.GetByEmail(ctx, email)
		return err
	})
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, storageErr("get user", err)
		}
		if err := s.burnVerify(ctx, password); err != nil {
			return nil, err
		}
		return nil, common.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		if errors.Is(err, common.ErrHashingFailure) {
			s.log.Error(ctx, "password verification failed", "user_id", user.ID, "error", err)
		}
		return nil, err
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	return s.tokens.Issue(ctx, user.ID, common.AudienceInternal)
}

// burnVerify spends the same work as a real verification so that response
// time does not reveal whether an email is registered.
func (s *AuthService) burnVerify(ctx context.Context, password string) error {
	dummy, err := s.dummy(ctx)
	if err != nil {
		return err
	}
	_, err = s.hasher.Verify(ctx, password, dummy)
	return err
}

// dummy returns the hash verified against for unknown emails, computing it
// on first use. A failed attempt is retried by the next caller.
func (s *AuthService) dummy(ctx context.Context) (string, error) {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()

	if s.dummyHash != "" {
		return s.dummyHash, nil
	}
	h, err := s.hasher.Hash(context.WithoutCancel(ctx), "fastid-absent-user")
	if err != nil {
		if errors.Is(err, common.ErrHashingFailure) {
			s.log.Error(ctx, "password hashing failed", "error", err)
		}
		return "", err
	}
	s.dummyHash = h
	return h, nil
}

// RefreshSession rotates a refresh token.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

// SignOut revokes the session a refresh token belongs to.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	return s.tokens.RevokeRefreshToken(ctx, refreshToken)
}

// CurrentUser validates accessToken and loads the user it names.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (user *models.User, err error) {
	ctx, span := startSpan(ctx, "AuthService.CurrentUser")
	defer func() { endSpan(span, err) }()

	claims, err := s.tokens.Validate(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)
	err = dbx.ReadRetry(ctx, s.repomanager.Dialect(), func(ctx context.Context) error {
		var err error
		user, err = repo.GetByID(ctx, claims.UserID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.log.Warn(ctx, "valid access token for missing user", "user_id", claims.UserID, "jti", claims.ID)
			return nil, common.ErrUserNotFound
		}
		return nil, storageErr("get user", err)
	}
	return user, nil
}
