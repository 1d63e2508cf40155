package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/logging"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/memory"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/repomanager"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_FeeIsRateTimesRevenue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)

	a, _ := env.register(t, "a@x.com")
	b, _ := env.register(t, "b@x.com")
	env.paidDeposit(t, a.ID, "BTC", 100)
	env.paidDeposit(t, b.ID, "ETH", 250)

	guest, err := env.txs.Create(ctx, CreateTransactionInput{Asset: "USDT", FiatAmount: dec("49.99"), PaymentMethod: "card"})
	require.NoError(t, err)
	_, err = env.txs.MarkPaid(ctx, guest.ID)
	require.NoError(t, err)

	_, err = env.txs.Create(ctx, CreateTransactionInput{UserID: &a.ID, Asset: "BTC", FiatAmount: dec("1000"), PaymentMethod: "card"})
	require.NoError(t, err)
	failed, err := env.txs.Create(ctx, CreateTransactionInput{UserID: &b.ID, Asset: "BTC", FiatAmount: dec("77"), PaymentMethod: "card"})
	require.NoError(t, err)
	_, err = env.txs.MarkFailed(ctx, failed.ID)
	require.NoError(t, err)

	stats, err := env.reports.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(5), stats.TotalTransactions)
	assert.True(t, stats.TotalRevenue.Equal(dec("399.99")), "revenue %s", stats.TotalRevenue)
	assert.True(t, stats.PlatformFeeEarned.Equal(stats.TotalRevenue.Mul(dec("0.02"))))
	assert.True(t, stats.PlatformFeeEarned.Equal(dec("7.9998")))
	assert.Equal(t, int64(3), stats.StatusCounts[models.StatusPaid])
	assert.Equal(t, int64(1), stats.StatusCounts[models.StatusPending])
	assert.Equal(t, int64(1), stats.StatusCounts[models.StatusFailed])
}

func TestStats_Empty(t *testing.T) {
	env := newTestEnv(t)
	stats, err := env.reports.Stats(context.Background(), env.admin(t))
	require.NoError(t, err)
	assert.Zero(t, stats.TotalTransactions)
	assert.True(t, stats.TotalRevenue.IsZero())
	assert.True(t, stats.PlatformFeeEarned.IsZero())
}

// snapshotCounter records how the report service reaches the store.
type snapshotCounter struct {
	*memory.Manager
	readTx int
	direct int
}

func (c *snapshotCounter) Repositories() repomanager.Repositories {
	c.direct++
	return c.Manager.Repositories()
}

func (c *snapshotCounter) WithReadTx(ctx context.Context, fn func(ctx context.Context, repos repomanager.Repositories) error) error {
	c.readTx++
	return c.Manager.WithReadTx(ctx, fn)
}

func TestStats_ReadsOneSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, _ := env.register(t, "a@x.com")
	env.paidDeposit(t, a.ID, "USDT", 10)

	counter := &snapshotCounter{Manager: env.repos}
	reports := NewReportService(counter, env.ledger, dec("0.02"), nil, logging.Discard())

	stats, err := reports.Stats(ctx, env.admin(t))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.TotalTransactions)
	assert.Equal(t, 1, counter.readTx)
	assert.Zero(t, counter.direct)
}

func TestReports_RequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")
	userP := &models.Principal{Kind: models.PrincipalUser, ID: u.ID, SessionID: "s"}

	calls := map[string]func(p *models.Principal) error{
		"stats": func(p *models.Principal) error { _, err := env.reports.Stats(ctx, p); return err },
		"users": func(p *models.Principal) error { _, err := env.reports.ListUsers(ctx, p); return err },
		"transactions": func(p *models.Principal) error {
			_, err := env.reports.ListTransactions(ctx, p)
			return err
		},
		"resets": func(p *models.Principal) error {
			_, err := env.reports.ListPasswordResets(ctx, p)
			return err
		},
		"reconcile": func(p *models.Principal) error { _, err := env.reports.Reconcile(ctx, p); return err },
		"export":    func(p *models.Principal) error { _, err := env.reports.Export(ctx, p); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, call(userP), common.ErrForbidden)
			require.ErrorIs(t, call(nil), common.ErrForbidden)
		})
	}
}

func TestListUsers_Snapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	a, _ := env.register(t, "a@x.com")
	env.register(t, "b@x.com")
	env.paidDeposit(t, a.ID, "USDT", 20)

	users, err := env.reports.ListUsers(ctx, admin)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@x.com", users[0].Email)
	assert.True(t, users[0].Balances["USDT"].Equal(decimal.NewFromInt(20)))
	assert.True(t, users[0].TotalDeposited.Equal(decimal.NewFromInt(20)))
	assert.True(t, users[1].Balances["USDT"].IsZero())

	raw, err := json.Marshal(users)
	require.NoError(t, err)
	assert.NotContains(t, strings.ToLower(string(raw)), "password")
}

func TestListPasswordResets_Status(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	env.register(t, "a@x.com")

	used, err := env.resets.RequestReset(ctx, "a@x.com")
	require.NoError(t, err)
	require.NoError(t, env.resets.ResetPassword(ctx, used, "newpass1"))
	_, err = env.resets.RequestReset(ctx, "a@x.com")
	require.NoError(t, err)

	list, err := env.reports.ListPasswordResets(ctx, admin)
	require.NoError(t, err)
	require.Len(t, list, 2)

	statuses := map[models.ResetStatus]int{}
	for _, r := range list {
		statuses[r.Status]++
		assert.Equal(t, "a@x.com", r.Email)
	}
	assert.Equal(t, 1, statuses[models.ResetConsumed])
	assert.Equal(t, 1, statuses[models.ResetActive])

	env.clock.Advance(2 * env.resets.ttl)
	list, err = env.reports.ListPasswordResets(ctx, admin)
	require.NoError(t, err)
	for _, r := range list {
		assert.NotEqual(t, models.ResetActive, r.Status)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	u, _ := env.register(t, "a@x.com")
	env.paidDeposit(t, u.ID, "BTC", 100)

	key, err := env.reports.Export(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, key, env.archiver.key)
	assert.True(t, strings.HasPrefix(key, "transactions/2025/03/01/"), key)
	assert.True(t, strings.HasSuffix(key, ".json"), key)

	var doc struct {
		Stats        Stats             `json:"stats"`
		Transactions []json.RawMessage `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(env.archiver.body, &doc))
	assert.Len(t, doc.Transactions, 1)
	assert.True(t, doc.Stats.TotalRevenue.Equal(decimal.NewFromInt(100)))

	env.archiver.err = errors.New("bucket gone")
	_, err = env.reports.Export(ctx, admin)
	require.Error(t, err)
}

func TestExport_Disabled(t *testing.T) {
	env := newTestEnv(t)
	reports := NewReportService(env.repos, env.ledger, dec("0.02"), nil, logging.Discard())
	assert.False(t, reports.ArchiveEnabled())

	_, err := reports.Export(context.Background(), env.admin(t))
	require.ErrorIs(t, err, common.ErrNotFound)
}
