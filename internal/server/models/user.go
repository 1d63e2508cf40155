// Package models defines server-side records persisted by the repositories.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a registered account. Email is stored lowercased. The running
// totals are fiat amounts maintained alongside ledger postings.
type User struct {
	ID             string
	Email          string
	Name           string
	PasswordHash   string
	CreatedAt      time.Time
	TotalDeposited decimal.Decimal
	TotalWithdrawn decimal.Decimal
}

// Admin is the single privileged identity. It has its own credential table
// and its own session namespace.
type Admin struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
