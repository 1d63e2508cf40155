package models

import "time"

// PrincipalKind separates user and admin session namespaces.
type PrincipalKind string

const (
	PrincipalUser  PrincipalKind = "user"
	PrincipalAdmin PrincipalKind = "admin"
)

func (k PrincipalKind) Valid() bool {
	return k == PrincipalUser || k == PrincipalAdmin
}

// Session is the server-side record a bearer token resolves to. Deleting
// the row revokes the token. A nil ExpiresAt means the session never expires.
type Session struct {
	ID          string
	Kind        PrincipalKind
	PrincipalID string
	IssuedAt    time.Time
	ExpiresAt   *time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Principal is an authenticated identity.
type Principal struct {
	Kind      PrincipalKind
	ID        string
	SessionID string
}
