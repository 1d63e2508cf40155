package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryDirection string

const (
	Credit EntryDirection = "credit"
	Debit  EntryDirection = "debit"
)

// LedgerEntry records one balance mutation. (SourceTransactionID, Direction)
// is unique, which is what makes postings idempotent.
type LedgerEntry struct {
	ID                  string
	UserID              string
	Asset               string
	Direction           EntryDirection
	Amount              decimal.Decimal
	BalanceAfter        decimal.Decimal
	SourceTransactionID string
	CreatedAt           time.Time
}

// Signed returns Amount with the sign of its direction.
func (e *LedgerEntry) Signed() decimal.Decimal {
	if e.Direction == Debit {
		return e.Amount.Neg()
	}
	return e.Amount
}

type Balance struct {
	UserID    string
	Asset     string
	Amount    decimal.Decimal
	UpdatedAt time.Time
}

// ReconcileRow compares a stored balance with the fold of its entries.
type ReconcileRow struct {
	UserID   string
	Asset    string
	Balance  decimal.Decimal
	Computed decimal.Decimal
}

func (r ReconcileRow) Consistent() bool { return r.Balance.Equal(r.Computed) }
