// Package admins stores the administrator credential, kept apart from
// regular user accounts.
package admins

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
)

type Repository interface {
	// Create inserts an admin unless one with the same email exists and
	// reports whether a row was written.
	Create(ctx context.Context, admin *models.Admin) (bool, error)
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
	GetByID(ctx context.Context, id string) (*models.Admin, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	Count(ctx context.Context) (int64, error)
}
