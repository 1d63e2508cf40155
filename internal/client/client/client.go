package client

import (
	"context"

	"github.com/dmitrijs2005/cryptodesk/internal/client/models"
)

// Client is the admin API as the CLI uses it. Login stores the session
// token for later calls; Logout drops it.
type Client interface {
	Ping(ctx context.Context) error
	Login(ctx context.Context, email string, password []byte) error
	Logout(ctx context.Context) error
	LoggedIn() bool
	ChangePassword(ctx context.Context, newPassword []byte) error

	Stats(ctx context.Context) (*models.Stats, error)
	Users(ctx context.Context) ([]models.User, error)
	Transactions(ctx context.Context) ([]models.Transaction, error)
	PasswordResets(ctx context.Context) ([]models.PasswordReset, error)
	Reconcile(ctx context.Context) (*models.ReconcileReport, error)
	Export(ctx context.Context) (string, error)

	MarkPaid(ctx context.Context, id string) (*models.Transaction, error)
	MarkFailed(ctx context.Context, id string) (*models.Transaction, error)
}
