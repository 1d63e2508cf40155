package ledger

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

const (
	entryColumns = `id, user_id, asset, direction, amount, balance_after, source_transaction_id, created_at`

	sourceKey = "ledger_entries_source_key"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.LedgerEntry, error) {
	e := &models.LedgerEntry{}
	var direction string
	err := row.Scan(&e.ID, &e.UserID, &e.Asset, &direction, &e.Amount, &e.BalanceAfter, &e.SourceTransactionID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Direction = models.EntryDirection(direction)
	return e, nil
}

func (r *PostgresRepository) LockBalance(ctx context.Context, userID, asset string, at time.Time) (decimal.Decimal, error) {
	insert :=
		`INSERT INTO balances (user_id, asset, amount, updated_at)
		 VALUES ($1, $2, 0, $3)
		 ON CONFLICT (user_id, asset) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, insert, userID, asset, at); err != nil {
		return decimal.Zero, fmt.Errorf("db error: %w", err)
	}

	query := `SELECT amount FROM balances WHERE user_id = $1 AND asset = $2 FOR UPDATE`

	var amount decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, userID, asset).Scan(&amount); err != nil {
		return decimal.Zero, fmt.Errorf("db error: %w", err)
	}
	return amount, nil
}

func (r *PostgresRepository) SetBalance(ctx context.Context, userID, asset string, amount decimal.Decimal, at time.Time) error {
	query := `UPDATE balances SET amount = $3, updated_at = $4 WHERE user_id = $1 AND asset = $2`

	res, err := r.db.ExecContext(ctx, query, userID, asset, amount, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) FindEntry(ctx context.Context, sourceTxID string, direction models.EntryDirection) (*models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE source_transaction_id = $1 AND direction = $2`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, sourceTxID, string(direction)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	query :=
		`INSERT INTO ledger_entries (id, user_id, asset, direction, amount, balance_after, source_transaction_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query, e.ID, e.UserID, e.Asset, string(e.Direction), e.Amount, e.BalanceAfter,
		e.SourceTransactionID, e.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, sourceKey) {
			return fmt.Errorf("entry for %s/%s: %w", e.SourceTransactionID, e.Direction, common.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListBalances(ctx context.Context, userID string) ([]*models.Balance, error) {
	query := `SELECT user_id, asset, amount, updated_at FROM balances WHERE user_id = $1 ORDER BY asset`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Balance
	for rows.Next() {
		b := &models.Balance{}
		if err := rows.Scan(&b.UserID, &b.Asset, &b.Amount, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) ListEntries(ctx context.Context, userID string) ([]*models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE user_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Reconcile(ctx context.Context) ([]models.ReconcileRow, error) {
	query :=
		`SELECT b.user_id, b.asset, b.amount, COALESCE(e.total, 0)
		 FROM balances b
		 LEFT JOIN (
		     SELECT user_id, asset,
		            SUM(CASE WHEN direction = 'credit' THEN amount ELSE -amount END) AS total
		     FROM ledger_entries
		     GROUP BY user_id, asset
		 ) e ON e.user_id = b.user_id AND e.asset = b.asset
		 ORDER BY b.user_id, b.asset`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.ReconcileRow
	for rows.Next() {
		var row models.ReconcileRow
		if err := rows.Scan(&row.UserID, &row.Asset, &row.Balance, &row.Computed); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
