// Package token issues, verifies, refreshes, and revokes session tokens.
//
// Tokens are HS256 JWTs whose subject is the canonical UserRef string, so the
// server and user identity are bound into the signed payload and a token can
// never be replayed against a different identity or server context. Each
// token carries a unique jti; logout and refresh revoke by jti through an
// in-memory set that holds the entry until the token would have expired
// anyway.
package token

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/starfall-project/authcore/internal/server/fop"
	"github.com/starfall-project/authcore/internal/userref"
)

// Leeway is the fixed clock-skew grace window applied around expiry checks.
const Leeway = 5 * time.Second

// Claims embeds the registered JWT claims; Subject carries the canonical
// UserRef string.
type Claims struct {
	jwt.RegisteredClaims
}

// Token is an issued session token together with its decoded identity.
type Token struct {
	Value     string
	Ref       userref.UserRef
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service signs and validates session tokens. The signing secret is read-only
// after construction; only the revocation set is mutated, under a lock.
type Service struct {
	secret []byte

	mu      sync.RWMutex
	revoked map[string]time.Time // jti -> token expiry

	// now is a test seam.
	now func() time.Time
}

func NewService(secret []byte) *Service {
	return &Service{
		secret:  secret,
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Issue signs a token for ref valid for ttl.
func (s *Service) Issue(ref userref.UserRef, ttl time.Duration) (Token, error) {
	return s.issue(ref, ttl)
}

func (s *Service) issue(ref userref.UserRef, ttl time.Duration) (Token, error) {
	now := s.now()
	exp := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ref.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fop.Other(fop.ReasonInternal, err)
	}

	return Token{Value: value, Ref: ref, IssuedAt: now, ExpiresAt: exp}, nil
}

// parse validates the signature and expiry and returns the claims. Any
// failure collapses into ErrTokenInvalid.
func (s *Service) parse(value string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(value, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(Leeway),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil || !tok.Valid {
		return nil, fop.ErrTokenInvalid
	}
	return claims, nil
}

// Verify checks signature, expiry, and revocation, and returns the decoded
// token. It takes no write lock and is safe to call from many requests at
// once.
func (s *Service) Verify(value string) (Token, error) {
	claims, err := s.parse(value)
	if err != nil {
		return Token{}, err
	}

	s.mu.RLock()
	_, revoked := s.revoked[claims.ID]
	s.mu.RUnlock()
	if revoked {
		return Token{}, fop.ErrTokenInvalid
	}

	ref, ok := userref.Parse(claims.Subject)
	if !ok {
		return Token{}, fop.ErrTokenInvalid
	}

	return Token{
		Value:     value,
		Ref:       ref,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Refresh invalidates old and issues a replacement for the same identity in
// one atomic step: a concurrent Verify observes either the old token valid
// and no new token, or the old token revoked.
func (s *Service) Refresh(old string, ttl time.Duration) (Token, error) {
	claims, err := s.parse(old)
	if err != nil {
		return Token{}, err
	}
	ref, ok := userref.Parse(claims.Subject)
	if !ok {
		return Token{}, fop.ErrTokenInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, revoked := s.revoked[claims.ID]; revoked {
		return Token{}, fop.ErrTokenInvalid
	}

	fresh, err := s.issue(ref, ttl)
	if err != nil {
		return Token{}, err
	}
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	return fresh, nil
}

// Revoke invalidates the token. Revoking an unparseable or already-revoked
// token is a no-op, so logout stays idempotent.
func (s *Service) Revoke(value string) {
	claims, err := s.parse(value)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	s.mu.Unlock()
}

// Sweep drops revocation entries whose token has expired on its own. The
// leeway is added so an entry never disappears while its token could still
// pass the expiry check.
func (s *Service) Sweep() {
	cut := s.now().Add(-Leeway)
	s.mu.Lock()
	for jti, exp := range s.revoked {
		if exp.Before(cut) {
			delete(s.revoked, jti)
		}
	}
	s.mu.Unlock()
}
