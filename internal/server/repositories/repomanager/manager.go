// Package repomanager groups the repositories behind one handle and owns
// transaction boundaries. Services depend on RepositoryManager only, so the
// same code runs against PostgreSQL or the in-memory store.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/admins"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/resets"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/users"
)

// Repositories is a set of repositories bound to one handle: either the
// shared pool or a single transaction.
type Repositories interface {
	Users() users.Repository
	Admins() admins.Repository
	Sessions() sessions.Repository
	Resets() resets.Repository
	Transactions() transactions.Repository
	Ledger() ledger.Repository
}

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error

	// Repositories returns repositories that run each call on its own.
	Repositories() Repositories

	// WithTx runs fn against repositories bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	// WithReadTx runs fn against one read-only snapshot, so several reads
	// agree with each other.
	WithReadTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	Close() error
}
