// Package sessions declares the server-side store for bearer sessions. A
// session row is what a token resolves to; deleting it revokes the token.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
)

// Repository defines operations for issuing, resolving and revoking sessions.
type Repository interface {
	Create(ctx context.Context, s *models.Session) error

	// Get returns common.ErrNotFound when the session does not exist.
	Get(ctx context.Context, id string) (*models.Session, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteByPrincipal revokes every session of a principal except
	// exceptID (which may be empty) and returns how many were removed.
	DeleteByPrincipal(ctx context.Context, kind models.PrincipalKind, principalID, exceptID string) (int64, error)

	// DeleteExpired purges sessions whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
