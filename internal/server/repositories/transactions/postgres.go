package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/dbx"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/shopspring/decimal"
)

const txColumns = `id, user_id, user_email, kind, asset, fiat_amount, crypto_amount, crypto_type,
	payment_method, payment_status, created_at, resolved_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	var kind, status string
	err := row.Scan(&t.ID, &t.UserID, &t.UserEmail, &kind, &t.Asset, &t.FiatAmount, &t.CryptoAmount,
		&t.CryptoType, &t.PaymentMethod, &status, &t.CreatedAt, &t.ResolvedAt)
	if err != nil {
		return nil, err
	}
	t.Kind = models.TransactionKind(kind)
	t.Status = models.PaymentStatus(status)
	return t, nil
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.Transaction) error {
	query :=
		`INSERT INTO transactions (id, user_id, user_email, kind, asset, fiat_amount, crypto_amount,
		 crypto_type, payment_method, payment_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, t.UserEmail, string(t.Kind), t.Asset, t.FiatAmount,
		t.CryptoAmount, t.CryptoType, t.PaymentMethod, string(t.Status), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Transaction, error) {
	return r.get(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	return r.get(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query, id string) (*models.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Resolve(ctx context.Context, id string, status models.PaymentStatus, at time.Time) error {
	query :=
		`UPDATE transactions SET payment_status = $2, resolved_at = $3
		 WHERE id = $1 AND payment_status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, id, string(status), at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrTransactionResolved
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Transaction, error) {
	return r.list(ctx, `SELECT `+txColumns+` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Transaction, error) {
	return r.list(ctx, `SELECT `+txColumns+` FROM transactions ORDER BY created_at DESC, id`)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Totals(ctx context.Context) (*models.TransactionTotals, error) {
	query :=
		`SELECT payment_status, COUNT(*), COALESCE(SUM(fiat_amount), 0)
		 FROM transactions
		 GROUP BY payment_status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	totals := &models.TransactionTotals{
		PaidRevenue:  decimal.Zero,
		StatusCounts: map[models.PaymentStatus]int64{},
	}
	for rows.Next() {
		var status string
		var n int64
		var sum decimal.Decimal
		if err := rows.Scan(&status, &n, &sum); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		totals.Count += n
		totals.StatusCounts[models.PaymentStatus(status)] = n
		if models.PaymentStatus(status) == models.StatusPaid {
			totals.PaidRevenue = sum
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return totals, nil
}
