package auth

import (
	"fmt"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

const DefaultMinPasswordLength = 6

// Hasher hashes and verifies passwords with bcrypt and enforces the
// password policy.
type Hasher struct {
	cost      int
	minLength int
	dummy     []byte
}

// NewHasher returns a Hasher. Out-of-range cost falls back to
// bcrypt.DefaultCost; a non-positive minLength to DefaultMinPasswordLength.
func NewHasher(cost, minLength int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}

	seed, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, err
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(seed), cost)
	if err != nil {
		return nil, err
	}

	return &Hasher{cost: cost, minLength: minLength, dummy: dummy}, nil
}

// Validate checks password against the policy.
func (h *Hasher) Validate(password string) error {
	if len([]rune(password)) < h.minLength {
		return fmt.Errorf("%w: must be at least %d characters", common.ErrWeakPassword, h.minLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: must be at most %d bytes", common.ErrWeakPassword, maxPasswordBytes)
	}
	return nil
}

// Hash validates and hashes password.
func (h *Hasher) Hash(password string) (string, error) {
	if err := h.Validate(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare reports whether password matches hash. An empty hash is compared
// against a throwaway hash so a missing account costs the same time as a
// wrong password.
func (h *Hasher) Compare(hash, password string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
