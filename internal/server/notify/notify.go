// Package notify delivers password-reset tokens to their owners. The HTTP
// response never carries the token in production; a Notifier does.
package notify

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/logging"
)

// PasswordResetRequested is published once per issued reset token.
type PasswordResetRequested struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Notifier interface {
	PasswordResetRequested(ctx context.Context, ev PasswordResetRequested) error
	Close() error
}

// LogNotifier records that a reset was requested without the token itself.
// It is the fallback when no delivery channel is configured.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) PasswordResetRequested(ctx context.Context, ev PasswordResetRequested) error {
	n.log.Info(ctx, "password reset requested", "email", ev.Email, "expires_at", ev.ExpiresAt)
	return nil
}

func (n *LogNotifier) Close() error { return nil }
