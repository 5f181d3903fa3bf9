package service

import (
	"context"
	"errors"
	"testing"
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

type fakeUsers struct {
	byName map[string]*model.User

	createErr error
	getErr    error

	deleted []uuid.UUID
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byName == nil {
		f.byName = map[string]*model.User{}
	}
	if _, exists := f.byName[u.Username]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byName[u.Username] = &cpy
	return nil
}
func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}
func (f *fakeUsers) UpdatePassword(_ context.Context, id uuid.UUID, pwdHash, saltAuth []byte) error {
	for _, u := range f.byName {
		if u.ID == id {
			u.PwdHash = append([]byte(nil), pwdHash...)
			u.SaltAuth = append([]byte(nil), saltAuth...)
			return nil
		}
	}
	return errs.ErrNotFound
}
func (f *fakeUsers) Delete(_ context.Context, id uuid.UUID) error {
	for name, u := range f.byName {
		if u.ID == id {
			delete(f.byName, name)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return errs.ErrNotFound
}

type fakeTokens struct {
	byValue map[string]*model.RefreshToken

	createErr error

	deletedIDs   []uuid.UUID
	deletedUsers []string
}

var _ repository.RefreshTokenRepository = (*fakeTokens)(nil)

func (f *fakeTokens) Create(_ context.Context, t *model.RefreshToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byValue == nil {
		f.byValue = map[string]*model.RefreshToken{}
	}
	cpy := *t
	f.byValue[t.Token] = &cpy
	return nil
}
func (f *fakeTokens) GetByToken(_ context.Context, token string) (*model.RefreshToken, error) {
	t, ok := f.byValue[token]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *t
	return &c, nil
}
func (f *fakeTokens) DeleteByID(_ context.Context, id uuid.UUID) error {
	for v, t := range f.byValue {
		if t.ID == id {
			delete(f.byValue, v)
			f.deletedIDs = append(f.deletedIDs, id)
			return nil
		}
	}
	return nil
}
func (f *fakeTokens) DeleteByUsername(_ context.Context, username string) error {
	for v, t := range f.byValue {
		if t.Username == username {
			delete(f.byValue, v)
		}
	}
	f.deletedUsers = append(f.deletedUsers, username)
	return nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

type fakePurger struct {
	failed []string
	err    error
	purged []uuid.UUID
}

func (p *fakePurger) PurgeOwner(_ context.Context, ownerID uuid.UUID) ([]string, error) {
	p.purged = append(p.purged, ownerID)
	return p.failed, p.err
}

func newAuth(users *fakeUsers, tokens *fakeTokens, lim *fakeLimiter, purger OwnerPurger) *AuthServiceImpl {
	return NewAuthService(users, tokens, token.NewJWT([]byte("k"), time.Minute), lim,
		purger, 30*24*time.Hour, zap.NewNop())
}

func seedUser(t *testing.T, users *fakeUsers, username, password string) *model.User {
	t.Helper()
	salt, _ := pkgcrypto.RandBytes(16)
	u := &model.User{
		ID:       uuid.Must(uuid.NewV4()),
		Username: username,
		SaltAuth: salt,
		PwdHash:  pkgcrypto.HashPassword([]byte(password), salt),
		Roles:    []string{"user"},
	}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestAuth_Register_Basics(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{byName: map[string]*model.User{}}
	s := newAuth(users, &fakeTokens{}, &fakeLimiter{}, &fakePurger{})

	if _, err := s.Register(context.Background(), "ab", "secret1"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput on short username, got %v", err)
	}
	if _, err := s.Register(context.Background(), "alice", "short"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput on short password, got %v", err)
	}

	id, err := s.Register(context.Background(), "alice", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id == "" {
		t.Fatalf("empty user id")
	}
	stored := users.byName["alice"]
	if stored == nil || len(stored.SaltAuth) != 16 || len(stored.PwdHash) == 0 {
		t.Fatalf("stored user missing salt/hash: %+v", stored)
	}
	if !pkgcrypto.VerifyPassword([]byte("secret1"), stored.SaltAuth, stored.PwdHash) {
		t.Fatalf("stored hash does not verify against the password")
	}

	if _, err := s.Register(context.Background(), "alice", "secret2"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists on duplicate, got %v", err)
	}

	users.createErr = errors.New("boom")
	if _, err := s.Register(context.Background(), "bob", "secret1"); err == nil {
		t.Fatalf("want propagated repo error")
	}
}

func TestAuth_Register_TrimsUsername(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{byName: map[string]*model.User{}}
	s := newAuth(users, &fakeTokens{}, &fakeLimiter{}, &fakePurger{})

	if _, err := s.Register(context.Background(), "  carol  ", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if users.byName["carol"] == nil {
		t.Fatalf("username not trimmed before store")
	}
}

func TestAuth_Login_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{byName: map[string]*model.User{}}
	seedUser(t, users, "alice", "correct")
	lim := &fakeLimiter{allowOK: true}
	s := newAuth(users, &fakeTokens{}, lim, &fakePurger{})

	lim.allowErr = errors.New("lim-err")
	if _, err := s.Login(context.Background(), "alice", "correct", "1.2.3.4"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	lim.allowErr = nil

	lim.allowOK = false
	if _, err := s.Login(context.Background(), "alice", "correct", "1.2.3.4"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.allowOK = true

	users.getErr = errs.ErrNotFound
	if _, err := s.Login(context.Background(), "nope", "x", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on missing user, got %v", err)
	}
	users.getErr = nil

	lim.failBlocked = true
	if _, err := s.Login(context.Background(), "alice", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}

	lim.failBlocked = false
	if _, err := s.Login(context.Background(), "alice", "wrong", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong password, got %v", err)
	}

	sess, err := s.Login(context.Background(), "alice", "correct", "127.0.0.1:123")
	if err != nil {
		t.Fatalf("Login success: %v", err)
	}
	if sess.AccessToken == "" || sess.AccessExpiresAt.Before(time.Now()) {
		t.Fatalf("bad access token: %+v", sess)
	}
	if sess.User.Username != "alice" {
		t.Fatalf("bad user returned: %+v", sess.User)
	}
	if lim.successCalls == 0 {
		t.Fatalf("expected Success() to be called")
	}
}

func TestAuth_Login_CreatesRefreshCredential(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{byName: map[string]*model.User{}}
	seedUser(t, users, "alice", "correct")
	tokens := &fakeTokens{}
	s := newAuth(users, tokens, &fakeLimiter{allowOK: true}, &fakePurger{})

	sess, err := s.Login(context.Background(), "alice", "correct", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Refresh.Token == "" {
		t.Fatalf("no refresh credential issued")
	}
	if sess.Refresh.Username != "alice" {
		t.Fatalf("refresh subject=%q", sess.Refresh.Username)
	}
	ttl := time.Until(sess.Refresh.ExpiresAt)
	if ttl < 29*24*time.Hour || ttl > 31*24*time.Hour {
		t.Fatalf("refresh TTL out of range: %v", ttl)
	}
	if _, ok := tokens.byValue[sess.Refresh.Token]; !ok {
		t.Fatalf("refresh credential not persisted")
	}

	// A second login issues a distinct credential; both stay live.
	sess2, err := s.Login(context.Background(), "alice", "correct", "")
	if err != nil {
		t.Fatalf("Login(2): %v", err)
	}
	if sess2.Refresh.Token == sess.Refresh.Token {
		t.Fatalf("refresh credential reused across logins")
	}
	if len(tokens.byValue) != 2 {
		t.Fatalf("want 2 live credentials, got %d", len(tokens.byValue))
	}
}

func TestAuth_Refresh(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{byName: map[string]*model.User{}}
	u := seedUser(t, users, "alice", "correct")
	tokens := &fakeTokens{byValue: map[string]*model.RefreshToken{}}
	s := newAuth(users, tokens, &fakeLimiter{allowOK: true}, &fakePurger{})

	live := &model.RefreshToken{
		ID:        uuid.Must(uuid.NewV4()),
		Token:     "live-token",
		Username:  "alice",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	_ = tokens.Create(context.Background(), live)

	access, exp, err := s.Refresh(context.Background(), "live-token")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if access == "" || !exp.After(time.Now()) {
		t.Fatalf("bad access token: %q %v", access, exp)
	}

	// The credential is not rotated; it can be used again.
	if _, _, err := s.Refresh(context.Background(), "live-token"); err != nil {
		t.Fatalf("Refresh(again): %v", err)
	}

	// The minted token carries the subject's identity.
	claims, err := token.NewJWT([]byte("k"), time.Minute).Verify(access)
	if err != nil {
		t.Fatalf("Verify minted token: %v", err)
	}
	if claims.Subject != u.ID.String() || claims.Username != "alice" {
		t.Fatalf("claims=%+v", claims)
	}
}

func TestAuth_Refresh_UnknownIsUnauthorized(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{byName: map[string]*model.User{}}
	s := newAuth(users, &fakeTokens{}, &fakeLimiter{}, &fakePurger{})

	if _, _, err := s.Refresh(context.Background(), "no-such-token"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestAuth_Refresh_ExpiredIsPurged(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{byName: map[string]*model.User{}}
	seedUser(t, users, "alice", "correct")
	tokens := &fakeTokens{byValue: map[string]*model.RefreshToken{}}
	s := newAuth(users, tokens, &fakeLimiter{}, &fakePurger{})

	expired := &model.RefreshToken{
		ID:        uuid.Must(uuid.NewV4()),
		Token:     "stale-token",
		Username:  "alice",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	_ = tokens.Create(context.Background(), expired)

	if _, _, err := s.Refresh(context.Background(), "stale-token"); !errors.Is(err, errs.ErrExpired) {
		t.Fatalf("want ErrExpired, got %v", err)
	}
	// Lazy sweep: the expired row is gone after being observed.
	if _, ok := tokens.byValue["stale-token"]; ok {
		t.Fatalf("expired credential still stored")
	}
	if len(tokens.deletedIDs) != 1 || tokens.deletedIDs[0] != expired.ID {
		t.Fatalf("deletedIDs=%v", tokens.deletedIDs)
	}
}

func TestAuth_Logout_RevokesAll(t *testing.T) {
	t.Parallel()

	tokens := &fakeTokens{byValue: map[string]*model.RefreshToken{}}
	s := newAuth(&fakeUsers{}, tokens, &fakeLimiter{}, &fakePurger{})

	for _, v := range []string{"t1", "t2"} {
		_ = tokens.Create(context.Background(), &model.RefreshToken{
			ID: uuid.Must(uuid.NewV4()), Token: v, Username: "alice",
			ExpiresAt: time.Now().Add(time.Hour),
		})
	}
	_ = tokens.Create(context.Background(), &model.RefreshToken{
		ID: uuid.Must(uuid.NewV4()), Token: "other", Username: "bob",
		ExpiresAt: time.Now().Add(time.Hour),
	})

	if err := s.Logout(context.Background(), "alice"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(tokens.byValue) != 1 {
		t.Fatalf("want only bob's credential left, got %d", len(tokens.byValue))
	}
	if _, ok := tokens.byValue["other"]; !ok {
		t.Fatalf("unrelated subject's credential revoked")
	}
}

func TestAuth_ChangePassword(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{byName: map[string]*model.User{}}
	u := seedUser(t, users, "alice", "oldpass")
	s := newAuth(users, &fakeTokens{}, &fakeLimiter{}, &fakePurger{})

	if err := s.ChangePassword(context.Background(), u.ID, "wrong", "newpass1"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput on wrong current password, got %v", err)
	}
	if err := s.ChangePassword(context.Background(), u.ID, "oldpass", "short"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput on short new password, got %v", err)
	}
	if err := s.ChangePassword(context.Background(), uuid.Must(uuid.NewV4()), "oldpass", "newpass1"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound on unknown user, got %v", err)
	}

	if err := s.ChangePassword(context.Background(), u.ID, "oldpass", "newpass1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	stored := users.byName["alice"]
	if !pkgcrypto.VerifyPassword([]byte("newpass1"), stored.SaltAuth, stored.PwdHash) {
		t.Fatalf("new password does not verify")
	}
	if pkgcrypto.VerifyPassword([]byte("oldpass"), stored.SaltAuth, stored.PwdHash) {
		t.Fatalf("old password still verifies")
	}
}

func TestAuth_DeleteAccount_Cascade(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{byName: map[string]*model.User{}}
	u := seedUser(t, users, "alice", "secret1")
	tokens := &fakeTokens{byValue: map[string]*model.RefreshToken{}}
	_ = tokens.Create(context.Background(), &model.RefreshToken{
		ID: uuid.Must(uuid.NewV4()), Token: "t1", Username: "alice",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	purger := &fakePurger{failed: []string{"/leftover/file.bin"}}
	s := newAuth(users, tokens, &fakeLimiter{}, purger)

	if err := s.DeleteAccount(context.Background(), u.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if len(purger.purged) != 1 || purger.purged[0] != u.ID {
		t.Fatalf("purger not called for owner: %v", purger.purged)
	}
	if len(tokens.deletedUsers) != 1 || tokens.deletedUsers[0] != "alice" {
		t.Fatalf("refresh credentials not revoked: %v", tokens.deletedUsers)
	}
	if len(users.deleted) != 1 || users.deleted[0] != u.ID {
		t.Fatalf("user row not deleted: %v", users.deleted)
	}

	if err := s.DeleteAccount(context.Background(), u.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound on second delete, got %v", err)
	}
}

func TestAuth_DeleteAccount_PurgeErrorAborts(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{byName: map[string]*model.User{}}
	u := seedUser(t, users, "alice", "secret1")
	purger := &fakePurger{err: errors.New("disk on fire")}
	s := newAuth(users, &fakeTokens{}, &fakeLimiter{}, purger)

	if err := s.DeleteAccount(context.Background(), u.ID); err == nil {
		t.Fatalf("want purge error to abort the cascade")
	}
	if users.byName["alice"] == nil {
		t.Fatalf("user row deleted despite failed purge")
	}
}
