package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/shopspring/decimal"
)

type txRepo struct{ v *view }

func cloneTx(in *models.Transaction) *models.Transaction {
	c := *in
	c.UserID = cloneString(in.UserID)
	c.ResolvedAt = cloneTime(in.ResolvedAt)
	return &c
}

func (r *txRepo) Create(ctx context.Context, t *models.Transaction) error {
	return r.v.do(func(s *state, j *journal) error {
		if _, ok := s.txs[t.ID]; ok {
			return common.ErrConflict
		}
		if t.UserID != nil {
			if _, ok := s.users[*t.UserID]; !ok {
				return common.ErrNotFound
			}
		}
		c := cloneTx(t)
		s.txs[c.ID] = c
		n := len(s.txOrder)
		s.txOrder = append(s.txOrder, c.ID)
		j.record(func() {
			delete(s.txs, c.ID)
			s.txOrder = s.txOrder[:n]
		})
		return nil
	})
}

func (r *txRepo) Get(ctx context.Context, id string) (*models.Transaction, error) {
	var out *models.Transaction
	err := r.v.do(func(s *state, j *journal) error {
		t, ok := s.txs[id]
		if !ok {
			return common.ErrNotFound
		}
		out = cloneTx(t)
		return nil
	})
	return out, err
}

// GetForUpdate is Get: the store mutex already serializes transactions.
func (r *txRepo) GetForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	return r.Get(ctx, id)
}

func (r *txRepo) Resolve(ctx context.Context, id string, status models.PaymentStatus, at time.Time) error {
	return r.v.do(func(s *state, j *journal) error {
		t, ok := s.txs[id]
		if !ok || t.Status != models.StatusPending {
			return common.ErrTransactionResolved
		}
		resolved := at
		t.Status, t.ResolvedAt = status, &resolved
		j.record(func() { t.Status, t.ResolvedAt = models.StatusPending, nil })
		return nil
	})
}

func (r *txRepo) ListByUser(ctx context.Context, userID string) ([]*models.Transaction, error) {
	return r.list(func(t *models.Transaction) bool { return t.UserID != nil && *t.UserID == userID })
}

func (r *txRepo) List(ctx context.Context) ([]*models.Transaction, error) {
	return r.list(func(*models.Transaction) bool { return true })
}

// list returns matches newest first.
func (r *txRepo) list(match func(*models.Transaction) bool) ([]*models.Transaction, error) {
	var out []*models.Transaction
	err := r.v.do(func(s *state, j *journal) error {
		for i := len(s.txOrder) - 1; i >= 0; i-- {
			if t := s.txs[s.txOrder[i]]; match(t) {
				out = append(out, cloneTx(t))
			}
		}
		return nil
	})
	return out, err
}

func (r *txRepo) Totals(ctx context.Context) (*models.TransactionTotals, error) {
	totals := &models.TransactionTotals{
		PaidRevenue:  decimal.Zero,
		StatusCounts: map[models.PaymentStatus]int64{},
	}
	err := r.v.do(func(s *state, j *journal) error {
		for _, t := range s.txs {
			totals.Count++
			totals.StatusCounts[t.Status]++
			if t.Status == models.StatusPaid {
				totals.PaidRevenue = totals.PaidRevenue.Add(t.FiatAmount)
			}
		}
		return nil
	})
	return totals, err
}
