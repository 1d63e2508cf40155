package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
)

type resetRepo struct{ v *view }

func cloneReset(in *models.PasswordReset) *models.PasswordReset {
	c := *in
	c.ConsumedAt = cloneTime(in.ConsumedAt)
	return &c
}

func (r *resetRepo) Create(ctx context.Context, reset *models.PasswordReset) error {
	return r.v.do(func(s *state, j *journal) error {
		if _, ok := s.resetByHash[reset.TokenHash]; ok {
			return common.ErrConflict
		}
		if _, ok := s.users[reset.UserID]; !ok {
			return common.ErrNotFound
		}
		c := cloneReset(reset)
		s.resets[c.ID] = c
		s.resetByHash[c.TokenHash] = c.ID
		n := len(s.resetOrder)
		s.resetOrder = append(s.resetOrder, c.ID)
		j.record(func() {
			delete(s.resets, c.ID)
			delete(s.resetByHash, c.TokenHash)
			s.resetOrder = s.resetOrder[:n]
		})
		return nil
	})
}

func (r *resetRepo) GetByTokenHashForUpdate(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	var out *models.PasswordReset
	err := r.v.do(func(s *state, j *journal) error {
		id, ok := s.resetByHash[tokenHash]
		if !ok {
			return common.ErrNotFound
		}
		out = cloneReset(s.resets[id])
		return nil
	})
	return out, err
}

func (r *resetRepo) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	return r.v.do(func(s *state, j *journal) error {
		reset, ok := s.resets[id]
		if !ok || reset.Consumed() {
			return common.ErrResetTokenUsed
		}
		consumed := at
		reset.ConsumedAt = &consumed
		j.record(func() { reset.ConsumedAt = nil })
		return nil
	})
}

func (r *resetRepo) List(ctx context.Context) ([]*models.PasswordReset, error) {
	var out []*models.PasswordReset
	err := r.v.do(func(s *state, j *journal) error {
		for i := len(s.resetOrder) - 1; i >= 0; i-- {
			out = append(out, cloneReset(s.resets[s.resetOrder[i]]))
		}
		return nil
	})
	return out, err
}

func (r *resetRepo) DeleteExpiredUnused(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.v.do(func(s *state, j *journal) error {
		prevOrder := s.resetOrder
		kept := make([]string, 0, len(prevOrder))
		var removed []*models.PasswordReset
		for _, id := range prevOrder {
			reset := s.resets[id]
			if reset.Consumed() || reset.ExpiresAt.After(cutoff) {
				kept = append(kept, id)
				continue
			}
			delete(s.resets, id)
			delete(s.resetByHash, reset.TokenHash)
			removed = append(removed, reset)
		}
		s.resetOrder = kept
		n = int64(len(removed))
		j.record(func() {
			for _, reset := range removed {
				s.resets[reset.ID] = reset
				s.resetByHash[reset.TokenHash] = reset.ID
			}
			s.resetOrder = prevOrder
		})
		return nil
	})
	return n, err
}
