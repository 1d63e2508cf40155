// Package transactions stores payment transaction records.
package transactions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, tx *models.Transaction) error

	// Get and GetForUpdate return common.ErrNotFound for unknown ids.
	// GetForUpdate locks the row until the surrounding transaction ends.
	Get(ctx context.Context, id string) (*models.Transaction, error)
	GetForUpdate(ctx context.Context, id string) (*models.Transaction, error)

	// Resolve moves a pending transaction to status. A transaction that is
	// no longer pending yields common.ErrTransactionResolved.
	Resolve(ctx context.Context, id string, status models.PaymentStatus, at time.Time) error

	ListByUser(ctx context.Context, userID string) ([]*models.Transaction, error)
	List(ctx context.Context) ([]*models.Transaction, error)

	// Totals folds the whole set: count, paid revenue and per-status counts.
	Totals(ctx context.Context) (*models.TransactionTotals, error)
}
