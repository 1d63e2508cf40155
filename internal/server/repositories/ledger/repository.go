// Package ledger persists per-user asset balances and the append-only
// entries that explain them.
package ledger

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/shopspring/decimal"
)

// Repository is used by the ledger engine inside a database transaction.
// LockBalance must be called before SetBalance for the same key.
type Repository interface {
	// LockBalance returns the current balance for (userID, asset), creating
	// a zero row if none exists, and holds a row lock until the transaction
	// ends.
	LockBalance(ctx context.Context, userID, asset string, at time.Time) (decimal.Decimal, error)
	SetBalance(ctx context.Context, userID, asset string, amount decimal.Decimal, at time.Time) error

	// FindEntry looks up the posting for a source transaction in one
	// direction. Missing entries yield common.ErrNotFound.
	FindEntry(ctx context.Context, sourceTxID string, direction models.EntryDirection) (*models.LedgerEntry, error)

	// InsertEntry appends an entry. A duplicate (source, direction) pair
	// yields an error wrapping common.ErrConflict.
	InsertEntry(ctx context.Context, e *models.LedgerEntry) error

	ListBalances(ctx context.Context, userID string) ([]*models.Balance, error)
	ListEntries(ctx context.Context, userID string) ([]*models.LedgerEntry, error)

	// Reconcile pairs every stored balance with the signed sum of its
	// entries.
	Reconcile(ctx context.Context) ([]models.ReconcileRow, error)
}
