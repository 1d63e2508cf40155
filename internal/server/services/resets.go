package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/logging"
	"github.com/dmitrijs2005/cryptodesk/internal/server/auth"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/dmitrijs2005/cryptodesk/internal/server/notify"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptodesk/internal/timex"
	"github.com/google/uuid"
)

// ResetService issues single-use password-reset tokens and consumes them.
type ResetService struct {
	repomanager repomanager.RepositoryManager
	hasher      *auth.Hasher
	notifier    notify.Notifier
	ttl         time.Duration
	now         timex.Clock
	log         logging.Logger
}

func NewResetService(m repomanager.RepositoryManager, hasher *auth.Hasher, notifier notify.Notifier, ttl time.Duration, log logging.Logger) *ResetService {
	return &ResetService{
		repomanager: m,
		hasher:      hasher,
		notifier:    notifier,
		ttl:         ttl,
		now:         timex.Now,
		log:         log.With("module", "resets"),
	}
}

// WithClock replaces the time source. Used by tests.
func (s *ResetService) WithClock(c timex.Clock) *ResetService {
	s.now = c
	return s
}

// RequestReset issues a reset token for email. For unknown emails it
// returns an empty token and no error, so callers cannot tell accounts
// apart. The token is handed to the notifier; a delivery failure is logged
// and does not fail the request.
func (s *ResetService) RequestReset(ctx context.Context, email string) (string, error) {
	email = common.NormalizeEmail(email)
	repos := s.repomanager.Repositories()

	user, err := repos.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.log.Debug(ctx, "password reset for unknown email")
			return "", nil
		}
		return "", err
	}

	token, err := common.MakeRandHexString(common.ResetTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now()
	reset := &models.PasswordReset{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		TokenHash: common.HashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := repos.Resets().Create(ctx, reset); err != nil {
		return "", err
	}

	ev := notify.PasswordResetRequested{Email: user.Email, Token: token, ExpiresAt: reset.ExpiresAt}
	if err := s.notifier.PasswordResetRequested(ctx, ev); err != nil {
		s.log.Error(ctx, "reset token delivery failed", "reset_id", reset.ID, "error", err)
	}

	return token, nil
}

// ResetPassword consumes token and sets the owner's password in one
// transaction, then revokes all of the owner's sessions. Of concurrent
// attempts with the same token exactly one succeeds; the rest fail with
// common.ErrResetTokenUsed.
func (s *ResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, common.ErrWeakPassword) {
			return err
		}
		return fmt.Errorf("hash password: %w", err)
	}
	if token == "" {
		return common.ErrResetTokenInvalid
	}

	var userID string
	err = s.repomanager.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		reset, err := repos.Resets().GetByTokenHashForUpdate(ctx, common.HashToken(token))
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrResetTokenInvalid
			}
			return err
		}

		now := s.now()
		switch {
		case reset.Consumed():
			return common.ErrResetTokenUsed
		case reset.Expired(now):
			return common.ErrResetTokenExpired
		}

		if err := repos.Resets().MarkConsumed(ctx, reset.ID, now); err != nil {
			return err
		}
		if err := repos.Users().UpdatePassword(ctx, reset.UserID, hash); err != nil {
			return err
		}
		if _, err := repos.Sessions().DeleteByPrincipal(ctx, models.PrincipalUser, reset.UserID, ""); err != nil {
			return err
		}
		userID = reset.UserID
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "password reset", "user_id", userID)
	return nil
}
