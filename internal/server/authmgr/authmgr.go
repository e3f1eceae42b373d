// Package authmgr orchestrates the local account lifecycle: registration,
// credential login behind the rate limiter, token-based authentication, and
// password changes. It owns no transport; the HTTP layer calls in and maps
// the returned errors onto the wire.
package authmgr

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/starfall-project/authcore/internal/logging"
	"github.com/starfall-project/authcore/internal/server/fop"
	"github.com/starfall-project/authcore/internal/server/ratelimit"
	"github.com/starfall-project/authcore/internal/server/store"
	"github.com/starfall-project/authcore/internal/server/token"
	"github.com/starfall-project/authcore/internal/userref"
)

// Manager binds the store, token service, and rate limiter into the
// authentication operations the boundary exposes.
type Manager struct {
	store    store.Store
	tokens   *token.Service
	limiter  *ratelimit.Limiter
	logger   logging.Logger
	tokenTTL time.Duration

	// bcryptCost is lowered in tests; zero means bcrypt.DefaultCost.
	bcryptCost int
}

func New(s store.Store, t *token.Service, l *ratelimit.Limiter, logger logging.Logger, tokenTTL time.Duration) *Manager {
	return &Manager{
		store:    s,
		tokens:   t,
		limiter:  l,
		logger:   logger,
		tokenTTL: tokenTTL,
	}
}

func (m *Manager) cost() int {
	if m.bcryptCost != 0 {
		return m.bcryptCost
	}
	return bcrypt.DefaultCost
}

// Register validates the username and email, hashes the password, and creates
// an active account.
func (m *Manager) Register(ctx context.Context, username, email, password string) (store.UserRecord, error) {
	if !ValidUsername(username) {
		return store.UserRecord{}, fop.ErrUserNameNotValid
	}
	if !ValidEmail(email) {
		return store.UserRecord{}, fop.ErrEmailNotValid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost())
	if err != nil {
		return store.UserRecord{}, fop.Other(fop.ReasonInternal, fmt.Errorf("hash password: %w", err))
	}

	rec, err := m.store.Create(ctx, store.UserRecord{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	})
	if err != nil {
		return store.UserRecord{}, err
	}

	m.logger.Info(ctx, "user registered", "uid", rec.UID, "username", rec.Username)
	return rec, nil
}

// Resolve finds the account an identifier denotes. A string of digits is
// tried as a uid first, then as a username, then as an email.
func (m *Manager) Resolve(ctx context.Context, ident string) (store.UserRecord, error) {
	if uid, err := strconv.ParseUint(ident, 10, 32); err == nil {
		if rec, err := m.store.FindByUID(ctx, uint32(uid)); err == nil {
			return rec, nil
		}
	}
	if rec, err := m.store.FindByUsername(ctx, ident); err == nil {
		return rec, nil
	}
	rec, err := m.store.FindByEmail(ctx, ident)
	if err != nil {
		return store.UserRecord{}, err
	}
	return rec, nil
}

// limitKey folds the identifier so "Alice" and "alice" share one attempt
// budget.
func limitKey(ident string) string {
	return strings.ToLower(ident)
}

// Login authenticates an identifier/password pair and issues a session token.
// The rate limiter is consulted before any store or bcrypt work; unknown
// identifiers and wrong passwords both count as failures and both surface as
// credential errors the caller cannot tell apart.
func (m *Manager) Login(ctx context.Context, ident, password string) (token.Token, store.UserRecord, error) {
	key := limitKey(ident)
	if m.limiter.Blocked(key) {
		return token.Token{}, store.UserRecord{}, fop.ErrTooManyRequests
	}

	rec, err := m.Resolve(ctx, ident)
	if err != nil {
		m.limiter.Failure(key)
		return token.Token{}, store.UserRecord{}, err
	}
	if !rec.IsActive {
		m.limiter.Failure(key)
		return token.Token{}, store.UserRecord{}, fop.ErrUserNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		m.limiter.Failure(key)
		m.logger.Warn(ctx, "login failed", "uid", rec.UID)
		return token.Token{}, store.UserRecord{}, fop.ErrPasswordMismatch
	}

	m.limiter.Reset(key)
	tok, err := m.tokens.Issue(userref.NewLocal(rec.UID), m.tokenTTL)
	if err != nil {
		return token.Token{}, store.UserRecord{}, err
	}

	m.logger.Info(ctx, "login ok", "uid", rec.UID)
	return tok, rec, nil
}

// Authenticate resolves a session token to its account. A valid token whose
// account has disappeared or been deactivated reports ErrTokenInvalid; the
// caller learns nothing about why.
func (m *Manager) Authenticate(ctx context.Context, tokenValue string) (store.UserRecord, error) {
	tok, err := m.tokens.Verify(tokenValue)
	if err != nil {
		return store.UserRecord{}, err
	}
	uid, ok := tok.Ref.LocalUID()
	if !ok {
		return store.UserRecord{}, fop.ErrTokenInvalid
	}

	rec, err := m.store.FindByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, fop.ErrUserNotFound) {
			return store.UserRecord{}, fop.ErrTokenInvalid
		}
		return store.UserRecord{}, err
	}
	if !rec.IsActive {
		return store.UserRecord{}, fop.ErrTokenInvalid
	}
	return rec, nil
}

// Refresh exchanges a valid token for a fresh one, revoking the old. The
// account must still exist and be active.
func (m *Manager) Refresh(ctx context.Context, tokenValue string) (token.Token, error) {
	if _, err := m.Authenticate(ctx, tokenValue); err != nil {
		return token.Token{}, err
	}
	return m.tokens.Refresh(tokenValue, m.tokenTTL)
}

// Logout revokes the token. Unknown or already-revoked tokens are a no-op.
func (m *Manager) Logout(ctx context.Context, tokenValue string) {
	m.tokens.Revoke(tokenValue)
	m.logger.Debug(ctx, "logout")
}

// ChangePassword re-verifies the current password before storing the new
// hash. The session token stays valid.
func (m *Manager) ChangePassword(ctx context.Context, tokenValue, oldPassword, newPassword string) error {
	rec, err := m.Authenticate(ctx, tokenValue)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(oldPassword)) != nil {
		return fop.ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), m.cost())
	if err != nil {
		return fop.Other(fop.ReasonInternal, fmt.Errorf("hash password: %w", err))
	}
	if err := m.store.UpdatePassword(ctx, rec.UID, string(hash)); err != nil {
		return err
	}

	m.logger.Info(ctx, "password changed", "uid", rec.UID)
	return nil
}

// Sweep discards expired limiter windows and revocation entries. The app
// calls it on a timer.
func (m *Manager) Sweep() {
	m.limiter.Sweep()
	m.tokens.Sweep()
}

// ValidUsername reports whether the name starts with an ASCII letter and
// contains only ASCII letters, digits, and the allowed punctuation set.
func ValidUsername(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	if !isASCIILetter(name[0]) {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !allowedIdentChar(name[i]) {
			return false
		}
	}
	return true
}

// ValidEmail requires a leading ASCII letter, exactly one '@' with non-empty
// halves, and the same character set as usernames on both sides.
func ValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	if !isASCIILetter(email[0]) {
		return false
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at != strings.LastIndexByte(email, '@') || at == len(email)-1 {
		return false
	}
	for i := 0; i < len(email); i++ {
		if i == at {
			continue
		}
		if !allowedIdentChar(email[i]) {
			return false
		}
	}
	return true
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func allowedIdentChar(c byte) bool {
	if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
		return true
	}
	switch c {
	case ',', '.', '_', '+', '-', '(', ')', '[', ']', '{', '}', '|':
		return true
	}
	return false
}
