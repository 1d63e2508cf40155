package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/logging"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptodesk/internal/syncx"
	"github.com/dmitrijs2005/cryptodesk/internal/timex"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Posting is one idempotent balance mutation. SourceTxID together with
// Direction identifies it: applying the same pair again is a no-op.
type Posting struct {
	UserID     string
	Asset      string
	Direction  models.EntryDirection
	Amount     decimal.Decimal
	SourceTxID string
}

// LedgerService is the only writer of balances. Every mutation for a user
// runs under that user's lock and inside one repository transaction, so a
// failed posting leaves nothing behind.
type LedgerService struct {
	repomanager repomanager.RepositoryManager
	locks       *syncx.KeyedMutex
	assets      []string
	now         timex.Clock
	log         logging.Logger
}

// NewLedgerService returns a ledger engine. Balances reports every asset in
// assets, zero when untouched.
func NewLedgerService(m repomanager.RepositoryManager, assets []string, log logging.Logger) *LedgerService {
	return &LedgerService{
		repomanager: m,
		locks:       syncx.NewKeyedMutex(),
		assets:      assets,
		now:         timex.Now,
		log:         log.With("module", "ledger"),
	}
}

// WithClock replaces the time source. Used by tests.
func (s *LedgerService) WithClock(c timex.Clock) *LedgerService {
	s.now = c
	return s
}

// LockUser serializes ledger work for userID until the returned function is
// called. Callers that need the ledger inside a larger transaction take the
// lock before opening it and pass the transaction to Apply.
func (s *LedgerService) LockUser(userID string) (unlock func()) {
	return s.locks.Lock(userID)
}

// Credit adds amount of asset to the user's balance.
func (s *LedgerService) Credit(ctx context.Context, userID, asset string, amount decimal.Decimal, sourceTxID string) error {
	return s.post(ctx, Posting{UserID: userID, Asset: asset, Direction: models.Credit, Amount: amount, SourceTxID: sourceTxID})
}

// Debit removes amount of asset from the user's balance. It fails with
// common.ErrInsufficientBalance, changing nothing, if the balance would go
// negative.
func (s *LedgerService) Debit(ctx context.Context, userID, asset string, amount decimal.Decimal, sourceTxID string) error {
	return s.post(ctx, Posting{UserID: userID, Asset: asset, Direction: models.Debit, Amount: amount, SourceTxID: sourceTxID})
}

func (s *LedgerService) post(ctx context.Context, p Posting) error {
	unlock := s.LockUser(p.UserID)
	defer unlock()

	return s.repomanager.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		_, err := s.Apply(ctx, repos, p)
		return err
	})
}

// Apply performs p against repos, which must be bound to a transaction, and
// reports whether anything changed. The caller must hold LockUser(p.UserID).
func (s *LedgerService) Apply(ctx context.Context, repos repomanager.Repositories, p Posting) (bool, error) {
	asset := common.NormalizeAsset(p.Asset)
	if p.UserID == "" || asset == "" || p.SourceTxID == "" {
		return false, common.ErrInvalidInput
	}
	if !p.Amount.IsPositive() {
		return false, common.ErrInvalidAmount
	}
	if p.Direction != models.Credit && p.Direction != models.Debit {
		return false, common.ErrInvalidInput
	}

	now := s.now()
	ledger := repos.Ledger()

	current, err := ledger.LockBalance(ctx, p.UserID, asset, now)
	if err != nil {
		return false, err
	}

	if prev, err := ledger.FindEntry(ctx, p.SourceTxID, p.Direction); err == nil {
		if prev.UserID != p.UserID || prev.Asset != asset || !prev.Amount.Equal(p.Amount) {
			s.log.Warn(ctx, "posting replay does not match recorded entry",
				"source_tx", p.SourceTxID, "direction", p.Direction, "user_id", p.UserID, "recorded_user_id", prev.UserID)
			return false, common.ErrPostingMismatch
		}
		s.log.Debug(ctx, "posting replayed", "source_tx", p.SourceTxID, "direction", p.Direction)
		return false, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return false, err
	}

	next := current.Add(p.Amount)
	if p.Direction == models.Debit {
		next = current.Sub(p.Amount)
	}
	if next.IsNegative() {
		return false, common.ErrInsufficientBalance
	}

	if err := ledger.SetBalance(ctx, p.UserID, asset, next, now); err != nil {
		return false, err
	}
	err = ledger.InsertEntry(ctx, &models.LedgerEntry{
		ID:                  uuid.NewString(),
		UserID:              p.UserID,
		Asset:               asset,
		Direction:           p.Direction,
		Amount:              p.Amount,
		BalanceAfter:        next,
		SourceTransactionID: p.SourceTxID,
		CreatedAt:           now,
	})
	if err != nil {
		return false, err
	}

	s.log.Info(ctx, "posting applied", "user_id", p.UserID, "asset", asset, "direction", p.Direction, "source_tx", p.SourceTxID)
	return true, nil
}

// Balances returns the committed balance of every known asset for userID.
func (s *LedgerService) Balances(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	stored, err := s.repomanager.Repositories().Ledger().ListBalances(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(s.assets)+len(stored))
	for _, asset := range s.assets {
		out[asset] = decimal.Zero
	}
	for _, b := range stored {
		out[b.Asset] = b.Amount
	}
	return out, nil
}

// Entries returns the user's postings in the order they were applied.
func (s *LedgerService) Entries(ctx context.Context, userID string) ([]*models.LedgerEntry, error) {
	return s.repomanager.Repositories().Ledger().ListEntries(ctx, userID)
}

// Reconcile compares every stored balance with the fold of its entries.
func (s *LedgerService) Reconcile(ctx context.Context) ([]models.ReconcileRow, error) {
	return s.repomanager.Repositories().Ledger().Reconcile(ctx)
}
