package models

import "time"

// PasswordReset is a single-use reset request. Only the SHA-256 of the
// token is stored.
type PasswordReset struct {
	ID         string
	UserID     string
	Email      string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

func (r *PasswordReset) Consumed() bool { return r.ConsumedAt != nil }

func (r *PasswordReset) Expired(now time.Time) bool { return !now.Before(r.ExpiresAt) }

// ResetStatus is the derived state shown to administrators.
type ResetStatus string

const (
	ResetActive   ResetStatus = "active"
	ResetConsumed ResetStatus = "consumed"
	ResetExpired  ResetStatus = "expired"
)

func (r *PasswordReset) Status(now time.Time) ResetStatus {
	switch {
	case r.Consumed():
		return ResetConsumed
	case r.Expired(now):
		return ResetExpired
	default:
		return ResetActive
	}
}
