// Package common defines shared constants, helpers and sentinel errors used
// across the server, the admin client and their storage layers. Callers should
// use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

// Error categories. Every error a service returns to the transport layer
// wraps exactly one of these.
var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrValidation          = errors.New("validation error")
	ErrConflict            = errors.New("conflict")
	ErrState               = errors.New("invalid state transition")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
	ErrInternal            = errors.New("internal error")
)

var (
	// credentials and sessions
	ErrInvalidCredentials = newKindError(ErrUnauthenticated, "invalid email or password")
	ErrInvalidToken       = newKindError(ErrUnauthenticated, "invalid token")
	ErrTokenExpired       = newKindError(ErrUnauthenticated, "token expired")

	// input validation
	ErrWeakPassword     = newKindError(ErrValidation, "password does not meet requirements")
	ErrInvalidEmail     = newKindError(ErrValidation, "invalid email address")
	ErrInvalidInput     = newKindError(ErrValidation, "invalid request")
	ErrUnsupportedAsset = newKindError(ErrValidation, "unsupported asset")
	ErrInvalidAmount    = newKindError(ErrValidation, "amount must be greater than zero")
	ErrAmountOutOfRange = newKindError(ErrInvalidAmount, "amount is out of range")

	// password reset
	ErrResetTokenInvalid = newKindError(ErrValidation, "invalid reset token")
	ErrResetTokenExpired = newKindError(ErrValidation, "reset token has expired")
	ErrResetTokenUsed    = newKindError(ErrConflict, "reset token has already been used")

	ErrDuplicateEmail = newKindError(ErrConflict, "email already registered")

	ErrTransactionResolved = newKindError(ErrState, "transaction is already resolved")
	ErrPostingMismatch     = newKindError(ErrConflict, "posting does not match the recorded entry")
)

// kindError is a sentinel with a human-readable message that also matches
// its category under errors.Is.
type kindError struct {
	kind error
	msg  string
}

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Validationf builds a validation error carrying a specific reason.
func Validationf(format string, args ...any) error {
	return &kindError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}
