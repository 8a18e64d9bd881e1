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

// SetupGuard creates the first administrator exactly once.
type SetupGuard struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *TokenService
	hasher      PasswordHasher
	log         logging.Logger
}

func NewSetupGuard(db *sql.DB, m repomanager.RepositoryManager, tokens *TokenService, hasher PasswordHasher, log logging.Logger) *SetupGuard {
	return &SetupGuard{db: db, repomanager: m, tokens: tokens, hasher: hasher, log: log}
}

// IsSetup reports whether bootstrap has completed.
func (s *SetupGuard) IsSetup(ctx context.Context) (bool, error) {
	repo := s.repomanager.Settings(s.db)

	var value string
	err := dbx.ReadRetry(ctx, s.repomanager.Dialect(), func(ctx context.Context) error {
		var err error
		value, err = repo.Get(ctx, common.SetupKey)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, storageErr("get setting", err)
	}
	return value == common.SetupDone, nil
}

// BootstrapAdmin creates an administrator, issues its first pair and marks
// the service as set up, all in one transaction. The config row is locked
// before the flag is read so concurrent callers run one after another and
// every caller but the first gets common.ErrAlreadySetup.
func (s *SetupGuard) BootstrapAdmin(ctx context.Context, email, password string) (pair *models.TokenPair, err error) {
	ctx, span := startSpan(ctx, "SetupGuard.BootstrapAdmin")
	defer func() { endSpan(span, err) }()

	email = NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	done, err := s.IsSetup(ctx)
	if err != nil {
		return nil, err
	}
	if done {
		s.log.Info(ctx, "setup requested after bootstrap")
		return nil, common.ErrAlreadySetup
	}

	// hashing is slow, keep it outside the transaction
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		if errors.Is(err, common.ErrHashingFailure) {
			s.log.Error(ctx, "password hashing failed", "error", err)
		}
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		settings := s.repomanager.Settings(tx)

		if err := settings.Lock(ctx, common.SetupKey); err != nil {
			return storageErr("lock setting", err)
		}
		value, err := settings.Get(ctx, common.SetupKey)
		if err != nil {
			return storageErr("get setting", err)
		}
		if value == common.SetupDone {
			return common.ErrAlreadySetup
		}

		user, err := s.repomanager.Users(tx).Create(ctx, &models.User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: hash,
			IsAdmin:      true,
			CreatedAt:    time.Now(),
		})
		if err != nil {
			return storageErr("create user", err)
		}

		pair, err = s.tokens.IssueWith(ctx, s.repomanager.Tokens(tx), user.ID, common.AudienceInternal)
		if err != nil {
			return err
		}

		if err := settings.Set(ctx, common.SetupKey, common.SetupDone); err != nil {
			return storageErr("set setting", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadySetup) {
			s.log.Info(ctx, "setup lost race to a concurrent bootstrap")
		}
		return nil, txErr("bootstrap", err)
	}

	s.log.Info(ctx, "administrator bootstrapped", "user_id", pair.UserID)
	return pair, nil
}
