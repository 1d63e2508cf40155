package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeposit_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.auth.Register(ctx, "a@x.com", "secret1", "Alice")
	require.NoError(t, err)
	u, token, err := env.auth.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	p, err := env.auth.Validate(ctx, token, models.PrincipalUser)
	require.NoError(t, err)

	tx, err := env.txs.Create(ctx, CreateTransactionInput{
		UserID: &p.ID, Asset: "BTC", FiatAmount: decimal.NewFromInt(100), CryptoType: "BTC", PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, tx.Status)
	assert.Equal(t, models.KindDeposit, tx.Kind)
	assert.Equal(t, "a@x.com", tx.UserEmail)
	assert.True(t, tx.CryptoAmount.Equal(dec("0.00113173")))

	paid, err := env.txs.MarkPaid(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, paid.Status)
	require.NotNil(t, paid.ResolvedAt)

	balances, err := env.ledger.Balances(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, balances["BTC"].IsPositive())
	assert.True(t, balances["BTC"].Equal(tx.CryptoAmount))

	me, err := env.auth.Me(ctx, p)
	require.NoError(t, err)
	assert.True(t, me.TotalDeposited.Equal(decimal.NewFromInt(100)))

	list, err := env.txs.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusPaid, list[0].Status)
}

func TestMarkPaid_Twice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")
	tx := env.paidDeposit(t, u.ID, "ETH", 500)

	_, err := env.txs.MarkPaid(ctx, tx.ID)
	require.ErrorIs(t, err, common.ErrTransactionResolved)
	require.ErrorIs(t, err, common.ErrState)

	_, err = env.txs.MarkFailed(ctx, tx.ID)
	require.ErrorIs(t, err, common.ErrState)

	balances, err := env.ledger.Balances(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, balances["ETH"].Equal(tx.CryptoAmount))

	user, err := env.repos.Repositories().Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, user.TotalDeposited.Equal(decimal.NewFromInt(500)))
	requireConsistent(t, env)
}

func TestMarkPaid_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")

	tx, err := env.txs.Create(ctx, CreateTransactionInput{
		UserID: &u.ID, Asset: "USDT", FiatAmount: decimal.NewFromInt(10), PaymentMethod: "card",
	})
	require.NoError(t, err)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.txs.MarkPaid(ctx, tx.ID)
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, common.ErrState)
	}
	assert.Equal(t, 1, ok)

	balances, err := env.ledger.Balances(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, balances["USDT"].Equal(decimal.NewFromInt(10)))
}

func TestMarkFailed_NoLedgerEffect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")

	tx, err := env.txs.Create(ctx, CreateTransactionInput{
		UserID: &u.ID, Asset: "BTC", FiatAmount: decimal.NewFromInt(100), PaymentMethod: "card",
	})
	require.NoError(t, err)

	failed, err := env.txs.Resolve(ctx, tx.ID, models.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, failed.Status)

	_, err = env.txs.MarkPaid(ctx, tx.ID)
	require.ErrorIs(t, err, common.ErrState)

	entries, err := env.ledger.Entries(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = env.txs.Resolve(ctx, tx.ID, models.StatusPending)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestGuestCheckout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")

	tx, err := env.txs.Create(ctx, CreateTransactionInput{
		Asset: "ETH", FiatAmount: decimal.NewFromInt(50), PaymentMethod: "paypal",
	})
	require.NoError(t, err)
	assert.True(t, tx.IsGuest())
	assert.Equal(t, common.GuestEmail, tx.UserEmail)

	_, err = env.txs.MarkPaid(ctx, tx.ID)
	require.NoError(t, err)

	rows, err := env.ledger.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	balances, err := env.ledger.Balances(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, balances["ETH"].IsZero())

	_, err = env.txs.Create(ctx, CreateTransactionInput{
		Kind: models.KindWithdrawal, Asset: "ETH", FiatAmount: decimal.NewFromInt(50), PaymentMethod: "paypal",
	})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestWithdrawal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")
	env.paidDeposit(t, u.ID, "USDT", 1000)

	tooBig, err := env.txs.Create(ctx, CreateTransactionInput{
		UserID: &u.ID, Kind: models.KindWithdrawal, Asset: "USDT", FiatAmount: decimal.NewFromInt(1500), PaymentMethod: "bank",
	})
	require.NoError(t, err)
	_, err = env.txs.MarkPaid(ctx, tooBig.ID)
	require.ErrorIs(t, err, common.ErrInsufficientBalance)

	still, err := env.txs.Get(ctx, tooBig.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, still.Status)

	ok, err := env.txs.Create(ctx, CreateTransactionInput{
		UserID: &u.ID, Kind: models.KindWithdrawal, Asset: "USDT", FiatAmount: decimal.NewFromInt(400), PaymentMethod: "bank",
	})
	require.NoError(t, err)
	_, err = env.txs.MarkPaid(ctx, ok.ID)
	require.NoError(t, err)

	balances, err := env.ledger.Balances(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, balances["USDT"].Equal(decimal.NewFromInt(600)))

	user, err := env.repos.Repositories().Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, user.TotalDeposited.Equal(decimal.NewFromInt(1000)))
	assert.True(t, user.TotalWithdrawn.Equal(decimal.NewFromInt(400)))
	requireConsistent(t, env)
}

func TestCreateTransaction_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")
	ghost := uuid.NewString()

	tests := []struct {
		name string
		in   CreateTransactionInput
		want error
	}{
		{"unsupported asset", CreateTransactionInput{UserID: &u.ID, Asset: "DOGE", FiatAmount: decimal.NewFromInt(1), PaymentMethod: "card"}, common.ErrUnsupportedAsset},
		{"missing asset", CreateTransactionInput{UserID: &u.ID, FiatAmount: decimal.NewFromInt(1), PaymentMethod: "card"}, common.ErrValidation},
		{"zero amount", CreateTransactionInput{UserID: &u.ID, Asset: "BTC", FiatAmount: decimal.Zero, PaymentMethod: "card"}, common.ErrInvalidAmount},
		{"rounds to zero", CreateTransactionInput{UserID: &u.ID, Asset: "BTC", FiatAmount: dec("0.001"), PaymentMethod: "card"}, common.ErrInvalidAmount},
		{"negative amount", CreateTransactionInput{UserID: &u.ID, Asset: "BTC", FiatAmount: dec("-5"), PaymentMethod: "card"}, common.ErrInvalidAmount},
		{"missing method", CreateTransactionInput{UserID: &u.ID, Asset: "BTC", FiatAmount: decimal.NewFromInt(1)}, common.ErrValidation},
		{"unknown kind", CreateTransactionInput{UserID: &u.ID, Kind: "refund", Asset: "BTC", FiatAmount: decimal.NewFromInt(1), PaymentMethod: "card"}, common.ErrValidation},
		{"unknown user", CreateTransactionInput{UserID: &ghost, Asset: "BTC", FiatAmount: decimal.NewFromInt(1), PaymentMethod: "card"}, common.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.txs.Create(ctx, tt.in)
			require.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestCreateTransaction_AmountBounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")

	tests := []struct {
		name   string
		amount decimal.Decimal
	}{
		{"huge exponent", decimal.New(1, 5_000_000)},
		{"tiny exponent", decimal.New(1, -5_000_000)},
		{"above maximum", decimal.NewFromInt(1_000_001)},
		{"just above maximum", dec("1000000.01")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.txs.Create(ctx, CreateTransactionInput{UserID: &u.ID, Asset: "USDT", FiatAmount: tt.amount, PaymentMethod: "card"})
			require.ErrorIs(t, err, common.ErrAmountOutOfRange)
			require.ErrorIs(t, err, common.ErrInvalidAmount)
			require.ErrorIs(t, err, common.ErrValidation)
		})
	}

	tx, err := env.txs.Create(ctx, CreateTransactionInput{UserID: &u.ID, Asset: "USDT", FiatAmount: DefaultMaxFiatAmount, PaymentMethod: "card"})
	require.NoError(t, err)
	assert.True(t, tx.FiatAmount.Equal(DefaultMaxFiatAmount))

	txs, err := env.txs.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestCreateTransaction_ConfiguredMaximum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")
	env.txs.WithMaxFiatAmount(dec("500"))

	_, err := env.txs.Create(ctx, CreateTransactionInput{UserID: &u.ID, Asset: "BTC", FiatAmount: dec("500.01"), PaymentMethod: "card"})
	require.ErrorIs(t, err, common.ErrAmountOutOfRange)

	_, err = env.txs.Create(ctx, CreateTransactionInput{UserID: &u.ID, Asset: "BTC", FiatAmount: dec("500"), PaymentMethod: "card"})
	require.NoError(t, err)

	// a non-positive limit leaves the current one in place
	env.txs.WithMaxFiatAmount(decimal.Zero)
	_, err = env.txs.Create(ctx, CreateTransactionInput{UserID: &u.ID, Asset: "BTC", FiatAmount: dec("501"), PaymentMethod: "card"})
	require.ErrorIs(t, err, common.ErrAmountOutOfRange)
}

func TestCreateTransaction_CryptoTypeFallback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")

	tx, err := env.txs.Create(ctx, CreateTransactionInput{
		UserID: &u.ID, CryptoType: "eth", FiatAmount: dec("31.255"), PaymentMethod: " card ",
	})
	require.NoError(t, err)
	assert.Equal(t, "ETH", tx.Asset)
	assert.Equal(t, "ETH", tx.CryptoType)
	assert.Equal(t, "card", tx.PaymentMethod)
	assert.True(t, tx.FiatAmount.Equal(dec("31.26")))
}

func TestTransactionLookup_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.txs.Get(ctx, "not-a-uuid")
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = env.txs.MarkPaid(ctx, uuid.NewString())
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = env.txs.MarkFailed(ctx, "nope")
	require.ErrorIs(t, err, common.ErrNotFound)
}
