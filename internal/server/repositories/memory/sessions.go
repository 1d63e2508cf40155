package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
)

type sessionRepo struct{ v *view }

func cloneSession(in *models.Session) *models.Session {
	c := *in
	c.ExpiresAt = cloneTime(in.ExpiresAt)
	return &c
}

func (r *sessionRepo) Create(ctx context.Context, sess *models.Session) error {
	return r.v.do(func(s *state, j *journal) error {
		if _, ok := s.sessions[sess.ID]; ok {
			return common.ErrConflict
		}
		c := cloneSession(sess)
		s.sessions[c.ID] = c
		j.record(func() { delete(s.sessions, c.ID) })
		return nil
	})
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*models.Session, error) {
	var out *models.Session
	err := r.v.do(func(s *state, j *journal) error {
		sess, ok := s.sessions[id]
		if !ok {
			return common.ErrNotFound
		}
		out = cloneSession(sess)
		return nil
	})
	return out, err
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	return r.v.do(func(s *state, j *journal) error {
		removeSessions(s, j, func(sess *models.Session) bool { return sess.ID == id })
		return nil
	})
}

func (r *sessionRepo) DeleteByPrincipal(ctx context.Context, kind models.PrincipalKind, principalID, exceptID string) (int64, error) {
	var n int64
	err := r.v.do(func(s *state, j *journal) error {
		n = removeSessions(s, j, func(sess *models.Session) bool {
			return sess.Kind == kind && sess.PrincipalID == principalID && sess.ID != exceptID
		})
		return nil
	})
	return n, err
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.v.do(func(s *state, j *journal) error {
		n = removeSessions(s, j, func(sess *models.Session) bool { return sess.Expired(now) })
		return nil
	})
	return n, err
}

func removeSessions(s *state, j *journal, match func(*models.Session) bool) int64 {
	var n int64
	for id, sess := range s.sessions {
		if !match(sess) {
			continue
		}
		delete(s.sessions, id)
		j.record(func() { s.sessions[sess.ID] = sess })
		n++
	}
	return n
}
