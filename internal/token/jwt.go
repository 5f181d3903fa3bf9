// Package token issues and verifies short-lived access credentials.
//
// Services depend only on the Issuer interface; how the credential is signed
// is this package's concern alone.
package token

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by an access credential. Subject is the user id.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints an opaque signed access credential for a subject.
type Issuer interface {
	// Issue returns a signed token and its expiry instant.
	Issue(userID uuid.UUID, username string) (string, time.Time, error)
}

// Verifier checks an access credential and extracts its claims.
type Verifier interface {
	// Verify parses and validates a raw token.
	Verify(raw string) (*Claims, error)
}

// JWT implements Issuer and Verifier with HS256.
type JWT struct {
	key []byte
	ttl time.Duration
}

// NewJWT constructs a JWT token service.
func NewJWT(key []byte, ttl time.Duration) *JWT {
	return &JWT{key: key, ttl: ttl}
}

// Issue creates a signed HS256 JWT for the given subject.
func (j *JWT) Issue(userID uuid.UUID, username string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(j.ttl)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(j.key)
	return signed, exp, err
}

// Verify parses a token, enforcing HS256 and expiry with a small leeway.
func (j *JWT) Verify(raw string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.key, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.New("invalid token")
	}

	v := jwt.NewValidator(jwt.WithLeeway(30 * time.Second))
	if err := v.Validate(&claims); err != nil {
		return nil, errors.New("token expired or not valid yet")
	}
	if _, err := uuid.FromString(claims.Subject); err != nil {
		return nil, errors.New("bad subject")
	}
	return &claims, nil
}
