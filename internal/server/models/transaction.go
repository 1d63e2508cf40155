package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindDeposit    TransactionKind = "deposit"
	KindWithdrawal TransactionKind = "withdrawal"
)

func (k TransactionKind) Valid() bool {
	return k == KindDeposit || k == KindWithdrawal
}

type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPaid    PaymentStatus = "paid"
	StatusFailed  PaymentStatus = "failed"
)

// Transaction is an append-only payment record. UserID is nil for guest
// checkouts, which never reach a ledger. CryptoAmount is quoted from the
// price table when the record is created.
type Transaction struct {
	ID            string          `json:"id"`
	UserID        *string         `json:"user_id"`
	UserEmail     string          `json:"user_email"`
	Kind          TransactionKind `json:"kind"`
	Asset         string          `json:"asset"`
	FiatAmount    decimal.Decimal `json:"fiat_amount"`
	CryptoAmount  decimal.Decimal `json:"crypto_amount"`
	CryptoType    string          `json:"crypto_type"`
	PaymentMethod string          `json:"payment_method"`
	Status        PaymentStatus   `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

func (t *Transaction) IsGuest() bool { return t.UserID == nil }

// TransactionTotals is the fold over the whole transaction set used by the
// admin report.
type TransactionTotals struct {
	Count        int64
	PaidRevenue  decimal.Decimal
	StatusCounts map[PaymentStatus]int64
}
