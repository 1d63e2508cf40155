// Package memory is a process-local RepositoryManager used when no database
// DSN is configured and in service tests.
//
// All state sits behind one mutex. WithTx holds that mutex for the whole
// callback and journals an undo step for every mutation, so a callback that
// returns an error leaves the store exactly as it found it. Callbacks must
// only use the repositories they are handed; calling back into the manager
// from inside WithTx deadlocks.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/admins"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/resets"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/users"
)

type balanceKey struct {
	userID string
	asset  string
}

type entryKey struct {
	source    string
	direction models.EntryDirection
}

type state struct {
	users     map[string]*models.User
	userOrder []string

	admins     map[string]*models.Admin
	adminOrder []string

	sessions map[string]*models.Session

	resets      map[string]*models.PasswordReset
	resetOrder  []string
	resetByHash map[string]string

	txs     map[string]*models.Transaction
	txOrder []string

	balances map[balanceKey]*models.Balance
	entries  []*models.LedgerEntry
	bySource map[entryKey]*models.LedgerEntry
}

func newState() *state {
	return &state{
		users:       map[string]*models.User{},
		admins:      map[string]*models.Admin{},
		sessions:    map[string]*models.Session{},
		resets:      map[string]*models.PasswordReset{},
		resetByHash: map[string]string{},
		txs:         map[string]*models.Transaction{},
		balances:    map[balanceKey]*models.Balance{},
		bySource:    map[entryKey]*models.LedgerEntry{},
	}
}

// journal collects undo steps for one transaction. A nil journal records
// nothing, which is what non-transactional calls use.
type journal struct {
	undo []func()
}

func (j *journal) record(fn func()) {
	if j != nil {
		j.undo = append(j.undo, fn)
	}
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

type Manager struct {
	mu sync.Mutex
	s  *state
}

var _ repomanager.RepositoryManager = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{s: newState()}
}

// RunMigrations is a no-op; the store has no schema.
func (m *Manager) RunMigrations(ctx context.Context) error { return nil }

func (m *Manager) Close() error { return nil }

func (m *Manager) Repositories() repomanager.Repositories {
	return &view{m: m}
}

func (m *Manager) WithTx(ctx context.Context, fn func(ctx context.Context, repos repomanager.Repositories) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j := &journal{}
	defer func() {
		if p := recover(); p != nil {
			j.rollback()
			panic(p)
		}
		if err != nil {
			j.rollback()
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &view{m: m, j: j})
}

// WithReadTx holds the store lock for the whole of fn, which already gives
// a consistent snapshot.
func (m *Manager) WithReadTx(ctx context.Context, fn func(ctx context.Context, repos repomanager.Repositories) error) error {
	return m.WithTx(ctx, fn)
}

// view is a Repositories bound either to the shared store (j == nil) or
// to a running transaction.
type view struct {
	m *Manager
	j *journal
}

func (v *view) do(fn func(s *state, j *journal) error) error {
	if v.j != nil {
		return fn(v.m.s, v.j)
	}
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	return fn(v.m.s, nil)
}

func (v *view) Users() users.Repository               { return &userRepo{v} }
func (v *view) Admins() admins.Repository             { return &adminRepo{v} }
func (v *view) Sessions() sessions.Repository         { return &sessionRepo{v} }
func (v *view) Resets() resets.Repository             { return &resetRepo{v} }
func (v *view) Transactions() transactions.Repository { return &txRepo{v} }
func (v *view) Ledger() ledger.Repository             { return &ledgerRepo{v} }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
