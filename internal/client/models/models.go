// Package models holds the admin client's view of server resources.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Stats struct {
	TotalUsers        int64            `json:"total_users"`
	TotalTransactions int64            `json:"total_transactions"`
	TotalRevenue      decimal.Decimal  `json:"total_revenue"`
	PlatformFeeEarned decimal.Decimal  `json:"platform_fee_earned"`
	FeeRate           decimal.Decimal  `json:"fee_rate"`
	StatusCounts      map[string]int64 `json:"status_counts"`
}

type User struct {
	ID             string                     `json:"id"`
	Email          string                     `json:"email"`
	Name           string                     `json:"name"`
	CreatedAt      time.Time                  `json:"created_at"`
	TotalDeposited decimal.Decimal            `json:"total_deposited"`
	TotalWithdrawn decimal.Decimal            `json:"total_withdrawn"`
	Balances       map[string]decimal.Decimal `json:"balances"`
}

type Transaction struct {
	ID            string          `json:"id"`
	UserID        *string         `json:"user_id"`
	UserEmail     string          `json:"user_email"`
	Kind          string          `json:"kind"`
	Asset         string          `json:"asset"`
	Amount        decimal.Decimal `json:"amount"`
	CryptoAmount  decimal.Decimal `json:"crypto_amount"`
	CryptoType    string          `json:"crypto_type"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

// PasswordReset is a reset request as the admin sees it; tokens are never
// returned.
type PasswordReset struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Status    string    `json:"status"`
}

type ReconcileRow struct {
	UserID     string          `json:"user_id"`
	Asset      string          `json:"asset"`
	Balance    decimal.Decimal `json:"balance"`
	Computed   decimal.Decimal `json:"computed"`
	Consistent bool            `json:"consistent"`
}

type ReconcileReport struct {
	Consistent bool           `json:"consistent"`
	Rows       []ReconcileRow `json:"rows"`
}
