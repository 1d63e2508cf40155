// Package users declares the storage contract for user accounts and its
// PostgreSQL implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// Create inserts a user. A case-insensitive email clash yields
	// common.ErrDuplicateEmail.
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	// AddTotals increments the fiat running totals.
	AddTotals(ctx context.Context, id string, deposited, withdrawn decimal.Decimal) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}
