package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/client/client"
	"github.com/dmitrijs2005/cryptodesk/internal/client/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStats(t *testing.T) {
	f := &fakeClient{stats: &models.Stats{
		TotalUsers:        2,
		TotalTransactions: 3,
		TotalRevenue:      d("399.99"),
		PlatformFeeEarned: d("7.9998"),
		FeeRate:           d("0.02"),
		StatusCounts:      map[string]int64{"pending": 2, "paid": 1},
	}}
	a, out := newTestApp(f, nil)

	require.NoError(t, a.Stats(context.Background()))
	s := out.String()
	assert.Contains(t, s, "Revenue")
	assert.Contains(t, s, "399.99")
	assert.Contains(t, s, "Fee earned (2%)")
	assert.Contains(t, s, "7.9998")
	assert.Less(t, strings.Index(s, "paid"), strings.Index(s, "pending"), "statuses are sorted")
}

func TestUsers(t *testing.T) {
	f := &fakeClient{users: []models.User{{
		ID: "u1", Email: "a@x.io", Name: "Alice",
		TotalDeposited: d("100"), TotalWithdrawn: d("0"),
		Balances: map[string]decimal.Decimal{"ETH": d("0.5"), "BTC": d("0.00113173")},
	}}}
	a, out := newTestApp(f, nil)

	require.NoError(t, a.Users(context.Background()))
	assert.Contains(t, out.String(), "BTC=0.00113173 ETH=0.5")
	assert.Contains(t, out.String(), "100.00")

	f.users = nil
	out.Reset()
	require.NoError(t, a.Users(context.Background()))
	assert.Equal(t, "No users\n", out.String())
}

func TestTransactionsAndResets(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	f := &fakeClient{
		txs: []models.Transaction{{
			ID: "t1", UserEmail: "Guest", Kind: "deposit", Amount: d("50"), CryptoAmount: d("0.016"),
			CryptoType: "ETH", PaymentMethod: "card", PaymentStatus: "pending", CreatedAt: created,
		}},
		resets: []models.PasswordReset{{ID: "r1", Email: "a@x.io", CreatedAt: created, Status: "expired"}},
	}
	a, out := newTestApp(f, nil)

	require.NoError(t, a.Transactions(context.Background()))
	assert.Contains(t, out.String(), "2025-03-01 10:30")
	assert.Contains(t, out.String(), "0.016 ETH")

	out.Reset()
	require.NoError(t, a.Resets(context.Background()))
	assert.Contains(t, out.String(), "expired")
	assert.NotContains(t, out.String(), "0001-01-01")
}

func TestReconcile(t *testing.T) {
	f := &fakeClient{reconcile: &models.ReconcileReport{Consistent: true, Rows: make([]models.ReconcileRow, 3)}}
	a, out := newTestApp(f, nil)

	require.NoError(t, a.Reconcile(context.Background()))
	assert.Equal(t, "Ledger consistent (3 balances checked)\n", out.String())

	f.reconcile = &models.ReconcileReport{Rows: []models.ReconcileRow{
		{UserID: "u1", Asset: "BTC", Balance: d("1"), Computed: d("1"), Consistent: true},
		{UserID: "u2", Asset: "ETH", Balance: d("2"), Computed: d("1.5")},
	}}
	out.Reset()
	require.NoError(t, a.Reconcile(context.Background()))
	assert.Contains(t, out.String(), "1 of 2 balances differ")
	assert.Contains(t, out.String(), "u2")
	assert.NotContains(t, out.String(), "u1")
}

func TestExport(t *testing.T) {
	f := &fakeClient{exportKey: "transactions/2025/03/01/abc.json"}
	a, out := newTestApp(f, nil)

	require.NoError(t, a.Export(context.Background()))
	assert.Contains(t, out.String(), "transactions/2025/03/01/abc.json")

	f.exportErr = client.ErrNotFound
	out.Reset()
	require.NoError(t, a.Export(context.Background()))
	assert.Contains(t, out.String(), "not configured")

	f.exportErr = errors.New("s3 down")
	require.Error(t, a.Export(context.Background()))
}

func TestMarkPaidFailed(t *testing.T) {
	f := &fakeClient{}
	a, out := newTestApp(f, nil)

	require.NoError(t, a.MarkPaid(context.Background(), "t1"))
	require.NoError(t, a.MarkFailed(context.Background(), "t2"))
	assert.Equal(t, []string{"paid t1", "failed t2"}, f.resolved)
	assert.Contains(t, out.String(), "Transaction t1 is paid")

	f.reportErr = &client.StatusError{Code: 409, Detail: "transaction is already resolved"}
	require.Error(t, a.MarkPaid(context.Background(), "t1"))
}

func TestReportErrorsPropagate(t *testing.T) {
	f := &fakeClient{reportErr: client.ErrUnauthorized}
	a, _ := newTestApp(f, nil)
	ctx := context.Background()

	for name, fn := range map[string]func(context.Context) error{
		"stats": a.Stats, "users": a.Users, "tx": a.Transactions, "resets": a.Resets, "reconcile": a.Reconcile,
	} {
		require.ErrorIs(t, fn(ctx), client.ErrUnauthorized, name)
	}
}
