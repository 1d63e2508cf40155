package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/cryptodesk/internal/dbx"
	"github.com/dmitrijs2005/cryptodesk/internal/server/migrations"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/admins"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/resets"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	db *sql.DB
}

// OpenPostgres opens a pgx-backed pool and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{db: db}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Admins(db dbx.DBTX) admins.Repository {
	return admins.NewPostgresRepository(db)
}

// Sessions returns a sessions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Resets(db dbx.DBTX) resets.Repository {
	return resets.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Transactions(db dbx.DBTX) transactions.Repository {
	return transactions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Ledger(db dbx.DBTX) ledger.Repository {
	return ledger.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the managed database.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

func (m *PostgresRepositoryManager) Repositories() Repositories {
	return &dbRepositories{m: m, db: m.db}
}

func (m *PostgresRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &dbRepositories{m: m, db: tx})
	})
}

var snapshotTx = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

func (m *PostgresRepositoryManager) WithReadTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return dbx.WithTx(ctx, m.db, snapshotTx, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &dbRepositories{m: m, db: tx})
	})
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

// dbRepositories binds the factories to one handle.
type dbRepositories struct {
	m  *PostgresRepositoryManager
	db dbx.DBTX
}

func (r *dbRepositories) Users() users.Repository               { return r.m.Users(r.db) }
func (r *dbRepositories) Admins() admins.Repository             { return r.m.Admins(r.db) }
func (r *dbRepositories) Sessions() sessions.Repository         { return r.m.Sessions(r.db) }
func (r *dbRepositories) Resets() resets.Repository             { return r.m.Resets(r.db) }
func (r *dbRepositories) Transactions() transactions.Repository { return r.m.Transactions(r.db) }
func (r *dbRepositories) Ledger() ledger.Repository             { return r.m.Ledger(r.db) }
