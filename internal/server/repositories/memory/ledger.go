package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/shopspring/decimal"
)

type ledgerRepo struct{ v *view }

func (r *ledgerRepo) LockBalance(ctx context.Context, userID, asset string, at time.Time) (decimal.Decimal, error) {
	amount := decimal.Zero
	err := r.v.do(func(s *state, j *journal) error {
		key := balanceKey{userID, asset}
		b, ok := s.balances[key]
		if !ok {
			if _, known := s.users[userID]; !known {
				return common.ErrNotFound
			}
			b = &models.Balance{UserID: userID, Asset: asset, Amount: decimal.Zero, UpdatedAt: at}
			s.balances[key] = b
			j.record(func() { delete(s.balances, key) })
		}
		amount = b.Amount
		return nil
	})
	return amount, err
}

func (r *ledgerRepo) SetBalance(ctx context.Context, userID, asset string, amount decimal.Decimal, at time.Time) error {
	return r.v.do(func(s *state, j *journal) error {
		b, ok := s.balances[balanceKey{userID, asset}]
		if !ok {
			return common.ErrNotFound
		}
		if amount.IsNegative() {
			return common.ErrInsufficientBalance
		}
		prevAmount, prevAt := b.Amount, b.UpdatedAt
		b.Amount, b.UpdatedAt = amount, at
		j.record(func() { b.Amount, b.UpdatedAt = prevAmount, prevAt })
		return nil
	})
}

func (r *ledgerRepo) FindEntry(ctx context.Context, sourceTxID string, direction models.EntryDirection) (*models.LedgerEntry, error) {
	var out *models.LedgerEntry
	err := r.v.do(func(s *state, j *journal) error {
		e, ok := s.bySource[entryKey{sourceTxID, direction}]
		if !ok {
			return common.ErrNotFound
		}
		c := *e
		out = &c
		return nil
	})
	return out, err
}

func (r *ledgerRepo) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	return r.v.do(func(s *state, j *journal) error {
		if _, ok := s.users[e.UserID]; !ok {
			return fmt.Errorf("user %s: %w", e.UserID, common.ErrNotFound)
		}
		if _, ok := s.txs[e.SourceTransactionID]; !ok {
			return fmt.Errorf("source transaction %s: %w", e.SourceTransactionID, common.ErrNotFound)
		}
		key := entryKey{e.SourceTransactionID, e.Direction}
		if _, ok := s.bySource[key]; ok {
			return fmt.Errorf("entry for %s/%s: %w", e.SourceTransactionID, e.Direction, common.ErrConflict)
		}
		c := *e
		s.bySource[key] = &c
		n := len(s.entries)
		s.entries = append(s.entries, &c)
		j.record(func() {
			delete(s.bySource, key)
			s.entries = s.entries[:n]
		})
		return nil
	})
}

func (r *ledgerRepo) ListBalances(ctx context.Context, userID string) ([]*models.Balance, error) {
	var out []*models.Balance
	err := r.v.do(func(s *state, j *journal) error {
		for key, b := range s.balances {
			if key.userID == userID {
				c := *b
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, k int) bool { return out[i].Asset < out[k].Asset })
	return out, err
}

func (r *ledgerRepo) ListEntries(ctx context.Context, userID string) ([]*models.LedgerEntry, error) {
	var out []*models.LedgerEntry
	err := r.v.do(func(s *state, j *journal) error {
		for _, e := range s.entries {
			if e.UserID == userID {
				c := *e
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}

func (r *ledgerRepo) Reconcile(ctx context.Context) ([]models.ReconcileRow, error) {
	var out []models.ReconcileRow
	err := r.v.do(func(s *state, j *journal) error {
		computed := map[balanceKey]decimal.Decimal{}
		for _, e := range s.entries {
			key := balanceKey{e.UserID, e.Asset}
			computed[key] = computed[key].Add(e.Signed())
		}
		for key, b := range s.balances {
			out = append(out, models.ReconcileRow{
				UserID:   key.userID,
				Asset:    key.asset,
				Balance:  b.Amount,
				Computed: computed[key],
			})
		}
		return nil
	})
	sort.Slice(out, func(i, k int) bool {
		if out[i].UserID != out[k].UserID {
			return out[i].UserID < out[k].UserID
		}
		return out[i].Asset < out[k].Asset
	})
	return out, err
}
