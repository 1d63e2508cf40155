package resets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/dbx"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
)

const resetColumns = `id, user_id, email, token_hash, created_at, expires_at, consumed_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReset(row scanner) (*models.PasswordReset, error) {
	r := &models.PasswordReset{}
	if err := row.Scan(&r.ID, &r.UserID, &r.Email, &r.TokenHash, &r.CreatedAt, &r.ExpiresAt, &r.ConsumedAt); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepository) Create(ctx context.Context, reset *models.PasswordReset) error {
	query :=
		`INSERT INTO password_resets (id, user_id, email, token_hash, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query, reset.ID, reset.UserID, reset.Email, reset.TokenHash, reset.CreatedAt, reset.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByTokenHashForUpdate(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	query := `SELECT ` + resetColumns + ` FROM password_resets WHERE token_hash = $1 FOR UPDATE`

	reset, err := scanReset(r.db.QueryRowContext(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return reset, nil
}

func (r *PostgresRepository) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE password_resets SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrResetTokenUsed
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.PasswordReset, error) {
	query := `SELECT ` + resetColumns + ` FROM password_resets ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.PasswordReset
	for rows.Next() {
		reset, err := scanReset(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, reset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) DeleteExpiredUnused(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM password_resets WHERE consumed_at IS NULL AND expires_at <= $1`

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
