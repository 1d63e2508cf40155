// Package resets stores password-reset requests.
package resets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, r *models.PasswordReset) error

	// GetByTokenHashForUpdate loads a request and, inside a transaction,
	// locks it until commit. Missing rows yield common.ErrNotFound.
	GetByTokenHashForUpdate(ctx context.Context, tokenHash string) (*models.PasswordReset, error)

	// MarkConsumed flips an unconsumed request to consumed. A request that
	// was already consumed yields common.ErrResetTokenUsed.
	MarkConsumed(ctx context.Context, id string, at time.Time) error

	List(ctx context.Context) ([]*models.PasswordReset, error)

	// DeleteExpiredUnused removes requests that were never consumed and
	// expired at or before cutoff. Consumed requests are kept for good so a
	// reused token keeps failing with common.ErrResetTokenUsed.
	DeleteExpiredUnused(ctx context.Context, cutoff time.Time) (int64, error)
}
