// Package services contains server-side business logic: credentials and
// sessions, password resets, the ledger engine, the transaction recorder and
// the admin reports. Services talk to storage only through
// repomanager.RepositoryManager.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
	"github.com/dmitrijs2005/cryptodesk/internal/logging"
	"github.com/dmitrijs2005/cryptodesk/internal/server/auth"
	"github.com/dmitrijs2005/cryptodesk/internal/server/config"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptodesk/internal/timex"
	"github.com/google/uuid"
)

// AuthService is the credential store and session issuer for both principal
// kinds. Users and the admin have separate credential tables and separate
// session namespaces.
type AuthService struct {
	repomanager repomanager.RepositoryManager
	hasher      *auth.Hasher
	jwtSecret   []byte
	userTTL     time.Duration
	adminTTL    time.Duration
	now         timex.Clock
	log         logging.Logger
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(m repomanager.RepositoryManager, hasher *auth.Hasher, cfg *config.Config, log logging.Logger) *AuthService {
	return &AuthService{
		repomanager: m,
		hasher:      hasher,
		jwtSecret:   []byte(cfg.SecretKey),
		userTTL:     cfg.SessionTTL,
		adminTTL:    cfg.AdminSessionTTL,
		now:         timex.Now,
		log:         log.With("module", "auth"),
	}
}

// WithClock replaces the time source. Used by tests.
func (s *AuthService) WithClock(c timex.Clock) *AuthService {
	s.now = c
	return s
}

// Register creates a user and opens a session for it.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*models.User, string, error) {
	email = common.NormalizeEmail(email)
	if !validEmail(email) {
		return nil, "", common.ErrInvalidEmail
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", common.Validationf("name is required")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, common.ErrWeakPassword) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	var token string
	err = s.repomanager.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		if err := repos.Users().Create(ctx, user); err != nil {
			return err
		}
		var err error
		token, err = s.issueSession(ctx, repos, models.PrincipalUser, user.ID)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return user, token, nil
}

// Login verifies credentials and opens a user session. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	repos := s.repomanager.Repositories()

	user, err := repos.Users().GetByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.Compare("", password)
			return nil, "", common.ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, "", common.ErrInvalidCredentials
	}

	token, err := s.issueSession(ctx, repos, models.PrincipalUser, user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// AdminLogin verifies the admin credential and opens an admin session.
func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (string, error) {
	repos := s.repomanager.Repositories()

	admin, err := repos.Admins().GetByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.Compare("", password)
			return "", common.ErrInvalidCredentials
		}
		return "", err
	}
	if !s.hasher.Compare(admin.PasswordHash, password) {
		s.log.Warn(ctx, "admin login failed")
		return "", common.ErrInvalidCredentials
	}

	token, err := s.issueSession(ctx, repos, models.PrincipalAdmin, admin.ID)
	if err != nil {
		return "", err
	}
	s.log.Info(ctx, "admin logged in", "admin_id", admin.ID)
	return token, nil
}

// Validate resolves a bearer token of the given kind to its principal. A
// token of the other kind yields common.ErrForbidden; anything else that
// does not resolve to a live session yields an unauthenticated error.
func (s *AuthService) Validate(ctx context.Context, token string, kind models.PrincipalKind) (*models.Principal, error) {
	sid, err := auth.ParseToken(token, kind, s.jwtSecret, s.now())
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) && s.isOtherKind(token, kind) {
			return nil, common.ErrForbidden
		}
		return nil, err
	}

	sess, err := s.repomanager.Repositories().Sessions().Get(ctx, sid)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	if sess.Kind != kind {
		return nil, common.ErrInvalidToken
	}
	if sess.Expired(s.now()) {
		return nil, common.ErrTokenExpired
	}

	return &models.Principal{Kind: sess.Kind, ID: sess.PrincipalID, SessionID: sess.ID}, nil
}

func (s *AuthService) isOtherKind(token string, kind models.PrincipalKind) bool {
	other := models.PrincipalAdmin
	if kind == models.PrincipalAdmin {
		other = models.PrincipalUser
	}
	_, err := auth.ParseToken(token, other, s.jwtSecret, s.now())
	return err == nil
}

// Logout revokes the principal's current session.
func (s *AuthService) Logout(ctx context.Context, p *models.Principal) error {
	return s.repomanager.Repositories().Sessions().Delete(ctx, p.SessionID)
}

// Me returns the user behind a user principal.
func (s *AuthService) Me(ctx context.Context, p *models.Principal) (*models.User, error) {
	if p == nil || p.Kind != models.PrincipalUser {
		return nil, common.ErrForbidden
	}
	user, err := s.repomanager.Repositories().Users().GetByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

// AdminChangePassword replaces the admin password and revokes every other
// admin session. The calling session stays valid.
func (s *AuthService) AdminChangePassword(ctx context.Context, p *models.Principal, newPassword string) error {
	if p == nil || p.Kind != models.PrincipalAdmin {
		return common.ErrForbidden
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, common.ErrWeakPassword) {
			return err
		}
		return fmt.Errorf("hash password: %w", err)
	}

	var revoked int64
	err = s.repomanager.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		if err := repos.Admins().UpdatePassword(ctx, p.ID, hash, s.now()); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}
		var err error
		revoked, err = repos.Sessions().DeleteByPrincipal(ctx, models.PrincipalAdmin, p.ID, p.SessionID)
		return err
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "admin password changed", "admin_id", p.ID, "revoked_sessions", revoked)
	return nil
}

// BootstrapAdmin creates the admin identity when none exists. An existing
// admin is never overwritten.
func (s *AuthService) BootstrapAdmin(ctx context.Context, email, password string) error {
	email = common.NormalizeEmail(email)
	repos := s.repomanager.Repositories()

	n, err := repos.Admins().Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		if _, err := repos.Admins().GetByEmail(ctx, email); errors.Is(err, common.ErrNotFound) {
			s.log.Warn(ctx, "configured admin email does not match the stored admin; keeping the stored one")
		}
		return nil
	}

	if !validEmail(email) {
		return common.ErrInvalidEmail
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("admin password: %w", err)
	}

	now := s.now()
	created, err := repos.Admins().Create(ctx, &models.Admin{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return err
	}
	if created {
		s.log.Info(ctx, "admin account created", "email", email)
	}
	return nil
}

// --- helpers below ---

func (s *AuthService) issueSession(ctx context.Context, repos repomanager.Repositories, kind models.PrincipalKind, principalID string) (string, error) {
	ttl := s.userTTL
	if kind == models.PrincipalAdmin {
		ttl = s.adminTTL
	}

	now := s.now()
	sess := &models.Session{
		ID:          uuid.NewString(),
		Kind:        kind,
		PrincipalID: principalID,
		IssuedAt:    now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		sess.ExpiresAt = &exp
	}

	token, err := auth.GenerateToken(sess.ID, kind, s.jwtSecret, now, ttl)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	if err := repos.Sessions().Create(ctx, sess); err != nil {
		return "", err
	}
	return token, nil
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
