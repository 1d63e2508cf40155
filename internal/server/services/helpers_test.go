package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/logging"
	"github.com/dmitrijs2005/cryptodesk/internal/server/auth"
	"github.com/dmitrijs2005/cryptodesk/internal/server/config"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/dmitrijs2005/cryptodesk/internal/server/notify"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.PasswordResetRequested
	err    error
}

func (f *fakeNotifier) PasswordResetRequested(ctx context.Context, ev notify.PasswordResetRequested) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeNotifier) Close() error { return nil }

type fakeArchiver struct {
	key  string
	body []byte
	err  error
}

func (f *fakeArchiver) Put(ctx context.Context, key string, body []byte) error {
	f.key, f.body = key, body
	return f.err
}

// testClock is a settable clock shared by all services of an env.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	repos    *memory.Manager
	clock    *testClock
	notifier *fakeNotifier
	archiver *fakeArchiver
	auth     *AuthService
	resets   *ResetService
	ledger   *LedgerService
	txs      *TransactionService
	reports  *ReportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hasher, err := auth.NewHasher(bcrypt.MinCost, 6)
	require.NoError(t, err)

	cfg := &config.Config{
		SecretKey:       "k",
		SessionTTL:      time.Hour,
		AdminSessionTTL: 30 * time.Minute,
	}
	log := logging.Discard()
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	prices := NewPriceTable(map[string]decimal.Decimal{
		"BTC":  decimal.RequireFromString("88360.65"),
		"ETH":  decimal.RequireFromString("3125.50"),
		"USDT": decimal.NewFromInt(1),
	})

	m := memory.NewManager()
	env := &testEnv{
		repos:    m,
		clock:    clock,
		notifier: &fakeNotifier{},
		archiver: &fakeArchiver{},
	}
	env.auth = NewAuthService(m, hasher, cfg, log).WithClock(clock.Now)
	env.resets = NewResetService(m, hasher, env.notifier, time.Hour, log).WithClock(clock.Now)
	env.ledger = NewLedgerService(m, prices.Assets(), log).WithClock(clock.Now)
	env.txs = NewTransactionService(m, env.ledger, prices, log).WithClock(clock.Now)
	env.reports = NewReportService(m, env.ledger, decimal.RequireFromString("0.02"), env.archiver, log).WithClock(clock.Now)
	return env
}

func (e *testEnv) register(t *testing.T, email string) (*models.User, string) {
	t.Helper()
	u, token, err := e.auth.Register(context.Background(), email, "secret1", "Test")
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) admin(t *testing.T) *models.Principal {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.auth.BootstrapAdmin(ctx, "admin@x.com", "admin123"))
	token, err := e.auth.AdminLogin(ctx, "admin@x.com", "admin123")
	require.NoError(t, err)
	p, err := e.auth.Validate(ctx, token, models.PrincipalAdmin)
	require.NoError(t, err)
	return p
}

// paidDeposit creates and confirms a deposit for userID.
func (e *testEnv) paidDeposit(t *testing.T, userID, asset string, fiat int64) *models.Transaction {
	t.Helper()
	ctx := context.Background()
	tx, err := e.txs.Create(ctx, CreateTransactionInput{
		UserID: &userID, Asset: asset, FiatAmount: decimal.NewFromInt(fiat), PaymentMethod: "card",
	})
	require.NoError(t, err)
	tx, err = e.txs.MarkPaid(ctx, tx.ID)
	require.NoError(t, err)
	return tx
}

// pendingTx opens a pending deposit for userID and returns its id, to be
// used as the source of a direct ledger posting.
func (e *testEnv) pendingTx(t *testing.T, userID string) string {
	t.Helper()
	tx, err := e.txs.Create(context.Background(), CreateTransactionInput{
		UserID: &userID, Asset: "USDT", FiatAmount: decimal.NewFromInt(1), PaymentMethod: "card",
	})
	require.NoError(t, err)
	return tx.ID
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
