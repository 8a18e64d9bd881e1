package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fastid/fastid/internal/common"
	"github.com/fastid/fastid/internal/cryptox"
	"github.com/fastid/fastid/internal/dbx"
	"github.com/fastid/fastid/internal/logging"
	"github.com/fastid/fastid/internal/server/auth"
	"github.com/fastid/fastid/internal/server/config"
	"github.com/fastid/fastid/internal/server/models"
	"github.com/fastid/fastid/internal/server/repositories/repomanager"
	"github.com/fastid/fastid/internal/server/repositories/tokens"
)

const refreshSecretBytes = 32

// TokenService mints, rotates, revokes and validates token pairs.
//
// A refresh token handed to clients has the form "<token_id>.<secret>"; only
// the digest of the secret is stored.
type TokenService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	signer      *auth.Signer
	accessTTL   time.Duration
	refreshTTL  time.Duration
	now         func() time.Time
	log         logging.Logger
}

func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *TokenService {
	return &TokenService{
		db:          db,
		repomanager: m,
		signer:      auth.NewSigner([]byte(cfg.SecretKey), cfg.ServiceName),
		accessTTL:   cfg.AccessTokenTTL,
		refreshTTL:  cfg.RefreshTokenTTL,
		now:         time.Now,
		log:         log,
	}
}

// WithClock replaces the time source used for issuing and validating tokens.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	s.signer = s.signer.WithClock(now)
	return s
}

// AccessTTL is the lifetime of issued access tokens.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// Issue creates and stores a new pair for userID scoped to audience.
func (s *TokenService) Issue(ctx context.Context, userID, audience string) (pair *models.TokenPair, err error) {
	ctx, span := startSpan(ctx, "TokenService.Issue", attribute.String("audience", audience))
	defer func() { endSpan(span, err) }()

	return s.IssueWith(ctx, s.repomanager.Tokens(s.db), userID, audience)
}

// IssueWith is Issue against a caller-supplied repository, typically one
// bound to an open transaction.
func (s *TokenService) IssueWith(ctx context.Context, repo tokens.Repository, userID, audience string) (*models.TokenPair, error) {
	now := dbx.Time(s.now())

	secret, err := common.MakeOpaqueToken(refreshSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInternal, err)
	}

	pair := &models.TokenPair{
		TokenID:          uuid.NewString(),
		RefreshToken:     cryptox.Digest(secret),
		UserID:           userID,
		Audience:         audience,
		ExpiresAt:        now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
		CreatedAt:        now,
	}

	pair.AccessToken, err = s.signer.Sign(userID, audience, uuid.NewString(), now, pair.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInternal, err)
	}

	if _, err := repo.Create(ctx, pair); err != nil {
		return nil, storageErr("create token", err)
	}

	issued := *pair
	issued.RefreshToken = pair.TokenID + "." + secret
	return &issued, nil
}

// Refresh consumes refreshToken and returns a new pair for the same user and
// audience. The old row is deleted in the same transaction that creates the
// new one, so a refresh token is accepted at most once; a replay finds no
// row and fails with common.ErrInvalidToken. A token whose refresh window has
// ended is deleted and reported as common.ErrExpiredToken.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (pair *models.TokenPair, err error) {
	ctx, span := startSpan(ctx, "TokenService.Refresh")
	defer func() { endSpan(span, err) }()

	tokenID, secret, ok := splitRefreshToken(refreshToken)
	if !ok {
		return nil, common.ErrInvalidToken
	}
	span.SetAttributes(attribute.String("token_id", tokenID))

	expired := false
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Tokens(tx)

		old, err := repo.GetByIDForUpdate(ctx, tokenID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrInvalidToken
			}
			return storageErr("get token", err)
		}
		if !cryptox.DigestMatches(secret, old.RefreshToken) {
			return common.ErrInvalidToken
		}

		deleted, err := repo.DeleteByID(ctx, tokenID)
		if err != nil {
			return storageErr("delete token", err)
		}
		if !deleted {
			// consumed by a concurrent refresh
			return common.ErrInvalidToken
		}

		if !s.now().Before(old.RefreshExpiresAt) {
			expired = true
			return nil
		}

		pair, err = s.IssueWith(ctx, repo, old.UserID, old.Audience)
		return err
	})
	if err != nil {
		return nil, txErr("refresh", err)
	}
	if expired {
		return nil, common.ErrExpiredToken
	}

	s.log.Debug(ctx, "token rotated", "old_token_id", tokenID, "token_id", pair.TokenID)
	return pair, nil
}

// Revoke deletes the pair; revoking an absent pair is not an error.
func (s *TokenService) Revoke(ctx context.Context, tokenID string) (err error) {
	ctx, span := startSpan(ctx, "TokenService.Revoke", attribute.String("token_id", tokenID))
	defer func() { endSpan(span, err) }()

	if _, err := s.repomanager.Tokens(s.db).DeleteByID(ctx, tokenID); err != nil {
		return storageErr("delete token", err)
	}
	return nil
}

// RevokeRefreshToken revokes the pair refreshToken belongs to, if the token
// is genuine. Unknown, malformed or already consumed tokens are ignored.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	tokenID, secret, ok := splitRefreshToken(refreshToken)
	if !ok {
		return nil
	}

	repo := s.repomanager.Tokens(s.db)
	var pair *models.TokenPair
	err := dbx.ReadRetry(ctx, s.repomanager.Dialect(), func(ctx context.Context) error {
		var err error
		pair, err = repo.GetByID(ctx, tokenID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return storageErr("get token", err)
	}
	if !cryptox.DigestMatches(secret, pair.RefreshToken) {
		return nil
	}
	return s.Revoke(ctx, tokenID)
}

// Validate checks an access token's signature and expiry without touching
// storage.
func (s *TokenService) Validate(ctx context.Context, accessToken string) (claims models.AccessClaims, err error) {
	_, span := startSpan(ctx, "TokenService.Validate")
	defer func() { endSpan(span, err) }()

	return s.signer.Parse(accessToken)
}

// DeleteExpired removes pairs whose refresh window ended before now.
func (s *TokenService) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := s.repomanager.Tokens(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, storageErr("delete expired tokens", err)
	}
	return n, nil
}

func splitRefreshToken(token string) (tokenID, secret string, ok bool) {
	tokenID, secret, found := strings.Cut(token, ".")
	if !found || secret == "" {
		return "", "", false
	}
	id, err := uuid.Parse(tokenID)
	if err != nil {
		return "", "", false
	}
	return id.String(), secret, true
}
