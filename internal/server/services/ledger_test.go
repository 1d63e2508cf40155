package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireConsistent(t *testing.T, env *testEnv) {
	t.Helper()
	rows, err := env.ledger.Reconcile(context.Background())
	require.NoError(t, err)
	for _, row := range rows {
		assert.True(t, row.Consistent(), "%s/%s: balance %s, entries %s", row.UserID, row.Asset, row.Balance, row.Computed)
		assert.False(t, row.Balance.IsNegative())
	}
}

func TestLedger_CreditDebit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")

	require.NoError(t, env.ledger.Credit(ctx, u.ID, "btc", dec("1.5"), env.pendingTx(t, u.ID)))
	require.NoError(t, env.ledger.Debit(ctx, u.ID, "BTC", dec("0.5"), env.pendingTx(t, u.ID)))

	balances, err := env.ledger.Balances(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, balances["BTC"].Equal(dec("1")))
	assert.True(t, balances["ETH"].IsZero())
	assert.Contains(t, balances, "USDT")

	entries, err := env.ledger.Entries(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[1].BalanceAfter.Equal(dec("1")))

	requireConsistent(t, env)
}

func TestLedger_ReplayIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")
	src := env.pendingTx(t, u.ID)

	for i := 0; i < 3; i++ {
		require.NoError(t, env.ledger.Credit(ctx, u.ID, "ETH", dec("2"), src))
	}

	balances, err := env.ledger.Balances(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, balances["ETH"].Equal(dec("2")))

	entries, err := env.ledger.Entries(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLedger_DebitFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")

	require.NoError(t, env.ledger.Credit(ctx, u.ID, "BTC", dec("1"), env.pendingTx(t, u.ID)))

	err := env.ledger.Debit(ctx, u.ID, "BTC", dec("1.00000001"), env.pendingTx(t, u.ID))
	require.ErrorIs(t, err, common.ErrInsufficientBalance)

	err = env.ledger.Debit(ctx, u.ID, "ETH", dec("1"), env.pendingTx(t, u.ID))
	require.ErrorIs(t, err, common.ErrInsufficientBalance)

	balances, err := env.ledger.Balances(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, balances["BTC"].Equal(dec("1")))

	entries, err := env.ledger.Entries(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// a failed debit leaves no balance row behind
	stored, err := env.repos.Repositories().Ledger().ListBalances(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	requireConsistent(t, env)
}

func TestLedger_InvalidPostings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")

	require.ErrorIs(t, env.ledger.Credit(ctx, u.ID, "BTC", dec("0"), "tx-1"), common.ErrInvalidAmount)
	require.ErrorIs(t, env.ledger.Credit(ctx, u.ID, "BTC", dec("-1"), "tx-1"), common.ErrInvalidAmount)
	require.ErrorIs(t, env.ledger.Credit(ctx, u.ID, "BTC", dec("1"), ""), common.ErrValidation)
	require.ErrorIs(t, env.ledger.Credit(ctx, u.ID, " ", dec("1"), "tx-1"), common.ErrValidation)
}

func TestLedger_ConcurrentOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.register(t, "a@x.com")
	require.NoError(t, env.ledger.Credit(ctx, u.ID, "BTC", dec("1"), env.pendingTx(t, u.ID)))

	const workers = 10
	sources := make([]string, workers)
	for i := range sources {
		sources[i] = env.pendingTx(t, u.ID)
	}
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = env.ledger.Debit(ctx, u.ID, "BTC", dec("0.6"), sources[i])
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.True(t, errors.Is(err, common.ErrInsufficientBalance), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)

	balances, err := env.ledger.Balances(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, balances["BTC"].Equal(dec("0.4")))
	requireConsistent(t, env)
}

func TestLedger_ConcurrentUsersStayIsolated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const perUser = 5
	ids := make([]string, 4)
	sources := make(map[string][]string, len(ids))
	for i := range ids {
		u, _ := env.register(t, fmt.Sprintf("u%d@x.com", i))
		ids[i] = u.ID
		for j := 0; j < perUser; j++ {
			sources[u.ID] = append(sources[u.ID], env.pendingTx(t, u.ID))
		}
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for _, src := range sources[id] {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, env.ledger.Credit(ctx, id, "USDT", dec("10"), src))
			}()
		}
	}
	wg.Wait()

	for _, id := range ids {
		balances, err := env.ledger.Balances(ctx, id)
		require.NoError(t, err)
		assert.True(t, balances["USDT"].Equal(dec("50")))
	}
	requireConsistent(t, env)
	assert.Zero(t, env.ledger.locks.Len())
}

func TestLedger_UserLockDoesNotBlockOtherUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, _ := env.register(t, "a@x.com")
	b, _ := env.register(t, "b@x.com")
	srcA, srcB := env.pendingTx(t, a.ID), env.pendingTx(t, b.ID)

	unlock := env.ledger.LockUser(a.ID)

	doneB := make(chan error, 1)
	go func() { doneB <- env.ledger.Credit(ctx, b.ID, "USDT", dec("1"), srcB) }()
	select {
	case err := <-doneB:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("posting for another user waited on a held lock")
	}

	doneA := make(chan error, 1)
	go func() { doneA <- env.ledger.Credit(ctx, a.ID, "USDT", dec("1"), srcA) }()
	select {
	case err := <-doneA:
		t.Fatalf("posting for a locked user finished early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case err := <-doneA:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("posting did not resume after unlock")
	}
	requireConsistent(t, env)
}

func TestLedger_MismatchedReplayConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, _ := env.register(t, "a@x.com")
	b, _ := env.register(t, "b@x.com")
	src := env.pendingTx(t, a.ID)

	require.NoError(t, env.ledger.Credit(ctx, a.ID, "BTC", dec("1"), src))

	tests := []struct {
		name   string
		userID string
		asset  string
		amount string
	}{
		{"other user", b.ID, "BTC", "1"},
		{"other asset", a.ID, "ETH", "1"},
		{"other amount", a.ID, "BTC", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.ledger.Credit(ctx, tt.userID, tt.asset, dec(tt.amount), src)
			require.ErrorIs(t, err, common.ErrPostingMismatch)
			require.ErrorIs(t, err, common.ErrConflict)
		})
	}

	// an exact replay is still a no-op
	require.NoError(t, env.ledger.Credit(ctx, a.ID, "btc", dec("1.0"), src))

	for _, id := range []string{a.ID, b.ID} {
		entries, err := env.ledger.Entries(ctx, id)
		require.NoError(t, err)
		if id == a.ID {
			assert.Len(t, entries, 1)
		} else {
			assert.Empty(t, entries)
		}
	}
	balances, err := env.ledger.Balances(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, balances["BTC"].IsZero())
	requireConsistent(t, env)
}
