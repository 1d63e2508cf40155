package memory

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/shopspring/decimal"
)

type userRepo struct{ v *view }

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	return r.v.do(func(s *state, j *journal) error {
		for _, u := range s.users {
			if strings.EqualFold(u.Email, user.Email) {
				return common.ErrDuplicateEmail
			}
		}
		if _, ok := s.users[user.ID]; ok {
			return common.ErrConflict
		}
		c := cloneUser(user)
		if c.TotalDeposited.IsZero() {
			c.TotalDeposited = decimal.Zero
		}
		if c.TotalWithdrawn.IsZero() {
			c.TotalWithdrawn = decimal.Zero
		}
		s.users[c.ID] = c
		n := len(s.userOrder)
		s.userOrder = append(s.userOrder, c.ID)
		j.record(func() {
			delete(s.users, c.ID)
			s.userOrder = s.userOrder[:n]
		})
		return nil
	})
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var out *models.User
	err := r.v.do(func(s *state, j *journal) error {
		for _, id := range s.userOrder {
			if u := s.users[id]; strings.EqualFold(u.Email, email) {
				out = cloneUser(u)
				return nil
			}
		}
		return common.ErrNotFound
	})
	return out, err
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	var out *models.User
	err := r.v.do(func(s *state, j *journal) error {
		u, ok := s.users[id]
		if !ok {
			return common.ErrNotFound
		}
		out = cloneUser(u)
		return nil
	})
	return out, err
}

func (r *userRepo) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.v.do(func(s *state, j *journal) error {
		u, ok := s.users[id]
		if !ok {
			return common.ErrNotFound
		}
		prev := u.PasswordHash
		u.PasswordHash = passwordHash
		j.record(func() { u.PasswordHash = prev })
		return nil
	})
}

func (r *userRepo) AddTotals(ctx context.Context, id string, deposited, withdrawn decimal.Decimal) error {
	return r.v.do(func(s *state, j *journal) error {
		u, ok := s.users[id]
		if !ok {
			return common.ErrNotFound
		}
		prevD, prevW := u.TotalDeposited, u.TotalWithdrawn
		u.TotalDeposited = u.TotalDeposited.Add(deposited)
		u.TotalWithdrawn = u.TotalWithdrawn.Add(withdrawn)
		j.record(func() { u.TotalDeposited, u.TotalWithdrawn = prevD, prevW })
		return nil
	})
}

func (r *userRepo) List(ctx context.Context) ([]*models.User, error) {
	var out []*models.User
	err := r.v.do(func(s *state, j *journal) error {
		for _, id := range s.userOrder {
			out = append(out, cloneUser(s.users[id]))
		}
		return nil
	})
	return out, err
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.v.do(func(s *state, j *journal) error {
		n = int64(len(s.users))
		return nil
	})
	return n, err
}

type adminRepo struct{ v *view }

func cloneAdmin(a *models.Admin) *models.Admin {
	c := *a
	return &c
}

func (r *adminRepo) Create(ctx context.Context, admin *models.Admin) (bool, error) {
	created := false
	err := r.v.do(func(s *state, j *journal) error {
		for _, a := range s.admins {
			if strings.EqualFold(a.Email, admin.Email) {
				return nil
			}
		}
		if _, ok := s.admins[admin.ID]; ok {
			return nil
		}
		c := cloneAdmin(admin)
		s.admins[c.ID] = c
		n := len(s.adminOrder)
		s.adminOrder = append(s.adminOrder, c.ID)
		j.record(func() {
			delete(s.admins, c.ID)
			s.adminOrder = s.adminOrder[:n]
		})
		created = true
		return nil
	})
	return created, err
}

func (r *adminRepo) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var out *models.Admin
	err := r.v.do(func(s *state, j *journal) error {
		for _, id := range s.adminOrder {
			if a := s.admins[id]; strings.EqualFold(a.Email, email) {
				out = cloneAdmin(a)
				return nil
			}
		}
		return common.ErrNotFound
	})
	return out, err
}

func (r *adminRepo) GetByID(ctx context.Context, id string) (*models.Admin, error) {
	var out *models.Admin
	err := r.v.do(func(s *state, j *journal) error {
		a, ok := s.admins[id]
		if !ok {
			return common.ErrNotFound
		}
		out = cloneAdmin(a)
		return nil
	})
	return out, err
}

func (r *adminRepo) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	return r.v.do(func(s *state, j *journal) error {
		a, ok := s.admins[id]
		if !ok {
			return common.ErrNotFound
		}
		prevHash, prevAt := a.PasswordHash, a.UpdatedAt
		a.PasswordHash, a.UpdatedAt = passwordHash, at
		j.record(func() { a.PasswordHash, a.UpdatedAt = prevHash, prevAt })
		return nil
	})
}

func (r *adminRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.v.do(func(s *state, j *journal) error {
		n = int64(len(s.admins))
		return nil
	})
	return n, err
}
