// Package service contains application services for sessions and file storage.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/semekhin/fileward/internal/crypto"
	"github.com/semekhin/fileward/internal/errs"
	"github.com/semekhin/fileward/internal/limiter"
	"github.com/semekhin/fileward/internal/model"
	"github.com/semekhin/fileward/internal/repository"
	"github.com/semekhin/fileward/internal/token"
)

// Account validation rules (kept from the original frontend contract).
const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 6
)

// AuthService defines account and session credential operations.
type AuthService interface {
	// Register creates a new user with secure password hashing.
	Register(ctx context.Context, username, password string) (userID string, err error)
	// Login applies rate-limiting, authenticates, and issues a session:
	// an access token plus a fresh refresh credential.
	Login(ctx context.Context, username, password, ip string) (model.Session, error)
	// Refresh validates a refresh credential and mints a new access token.
	// The credential itself is not rotated; it stays valid until expiry or logout.
	Refresh(ctx context.Context, refreshToken string) (access string, expiresAt time.Time, err error)
	// Logout revokes all refresh credentials for the subject.
	Logout(ctx context.Context, username string) error
	// ChangePassword verifies the current password and stores a new hash.
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
	// DeleteAccount cascades: purges stored files, revokes refresh credentials,
	// removes the user row.
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
}

// OwnerPurger removes all stored content for an owner (account deletion cascade).
type OwnerPurger interface {
	PurgeOwner(ctx context.Context, ownerID uuid.UUID) ([]string, error)
}

type AuthServiceImpl struct {
	users      repository.UserRepository
	tokens     repository.RefreshTokenRepository
	issuer     token.Issuer
	lim        limiter.Limiter
	purger     OwnerPurger
	refreshTTL time.Duration
	log        *zap.Logger
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	issuer token.Issuer,
	lim limiter.Limiter,
	purger OwnerPurger,
	refreshTTL time.Duration,
	log *zap.Logger,
) *AuthServiceImpl {
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &AuthServiceImpl{
		users: users, tokens: tokens, issuer: issuer,
		lim: lim, purger: purger, refreshTTL: refreshTTL, log: log,
	}
}

// Register creates a new user record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return "", fmt.Errorf("%w: username must be between %d and %d characters",
			errs.ErrInvalidInput, minUsernameLen, maxUsernameLen)
	}
	if len(password) < minPasswordLen {
		return "", fmt.Errorf("%w: password must be at least %d characters",
			errs.ErrInvalidInput, minPasswordLen)
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	saltAuth, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return "", err
	}
	u := &model.User{
		ID:       uid,
		Username: username,
		PwdHash:  pkgcrypto.HashPassword([]byte(password), saltAuth),
		SaltAuth: saltAuth,
		Roles:    []string{"user"},
	}
	if err := s.users.Create(ctx, u); err != nil {
		return "", err
	}
	return uid.String(), nil
}

// Login authenticates with rate limiting by (username, ip) and issues both
// credentials. Each successful login creates a new refresh credential; no
// dedup against existing live ones, concurrent sessions are permitted.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password, ip string) (model.Session, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Session{}, err
	}
	if !allowed {
		return model.Session{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return model.Session{}, errs.ErrRateLimited
		}
		// hide user existence on wrong password, and mask lookup errors
		return model.Session{}, errs.ErrUnauthorized
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, username, ipHash)

	access, exp, err := s.issuer.Issue(u.ID, u.Username)
	if err != nil {
		return model.Session{}, err
	}
	refresh, err := s.createRefreshCredential(ctx, u.Username)
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{
		AccessToken:     access,
		AccessExpiresAt: exp,
		Refresh:         *refresh,
		User:            *u,
	}, nil
}

// createRefreshCredential generates an unguessable token value and persists it
// with the fixed refresh lifetime.
func (s *AuthServiceImpl) createRefreshCredential(ctx context.Context, username string) (*model.RefreshToken, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	val, err := pkgcrypto.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	t := &model.RefreshToken{
		ID:        id,
		Token:     val,
		Username:  username,
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}
	if err := s.tokens.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Refresh exchanges a live refresh credential for a new access token.
// An unknown credential is unauthorized, not "not found": existence of
// credentials is never revealed to an unauthenticated caller.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	t, err := s.tokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", time.Time{}, fmt.Errorf("refresh credential: %w", errs.ErrUnauthorized)
		}
		return "", time.Time{}, err
	}
	if err := s.verifyExpiration(ctx, t); err != nil {
		return "", time.Time{}, err
	}

	u, err := s.users.GetByUsername(ctx, t.Username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", time.Time{}, fmt.Errorf("refresh subject: %w", errs.ErrUnauthorized)
		}
		return "", time.Time{}, err
	}
	return s.issuer.Issue(u.ID, u.Username)
}

// verifyExpiration enforces the lazy expiry sweep: an expired credential,
// once observed, is deleted eagerly. There is no background reaper.
func (s *AuthServiceImpl) verifyExpiration(ctx context.Context, t *model.RefreshToken) error {
	if t.ExpiresAt.After(time.Now()) {
		return nil
	}
	if err := s.tokens.DeleteByID(ctx, t.ID); err != nil {
		s.log.Warn("purge expired refresh credential", zap.Error(err))
	}
	return fmt.Errorf("refresh credential: %w", errs.ErrExpired)
}

// Logout revokes all refresh credentials for the subject. A benign race with
// a concurrent login is acceptable; session semantics are best-effort.
func (s *AuthServiceImpl) Logout(ctx context.Context, username string) error {
	return s.tokens.DeleteByUsername(ctx, username)
}

// ChangePassword verifies the current password before storing a new hash
// under a fresh salt.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !pkgcrypto.VerifyPassword([]byte(current), u.SaltAuth, u.PwdHash) {
		return fmt.Errorf("%w: incorrect current password", errs.ErrInvalidInput)
	}
	if len(next) < minPasswordLen {
		return fmt.Errorf("%w: new password must be at least %d characters",
			errs.ErrInvalidInput, minPasswordLen)
	}
	salt, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, pkgcrypto.HashPassword([]byte(next), salt), salt)
}

// DeleteAccount cascades account removal: file purge first, then refresh
// credentials, then the user row. Per-file purge failures are logged and do
// not abort the cascade (stale bytes are leaked disk space, not a hazard).
func (s *AuthServiceImpl) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	failed, err := s.purger.PurgeOwner(ctx, u.ID)
	if err != nil {
		return err
	}
	for _, p := range failed {
		s.log.Warn("account deletion left a file behind",
			zap.String("username", u.Username), zap.String("path", p))
	}
	if err := s.tokens.DeleteByUsername(ctx, u.Username); err != nil {
		return err
	}
	return s.users.Delete(ctx, u.ID)
}
