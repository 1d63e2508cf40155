package admins

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

const adminColumns = `id, email, password_hash, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, admin *models.Admin) (bool, error) {
	query :=
		`INSERT INTO admins (id, email, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, admin.ID, admin.Email, admin.PasswordHash, admin.CreatedAt, admin.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	return r.get(ctx, `SELECT `+adminColumns+` FROM admins WHERE lower(email) = lower($1)`, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Admin, error) {
	return r.get(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query, arg string) (*models.Admin, error) {
	a := &models.Admin{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	query := `UPDATE admins SET password_hash = $2, updated_at = $3 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, passwordHash, at)
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

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
