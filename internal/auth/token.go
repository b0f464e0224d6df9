package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL is the lifetime of a session credential.
const SessionTTL = 7 * 24 * time.Hour

type sessionClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256-signed session credentials. It is stateless:
// there is no server-side revocation list.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// TokenOption customises Tokens.
type TokenOption func(*Tokens)

// WithClock overrides the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(t *Tokens) { t.now = now }
}

// NewTokens creates a token codec for the given signing secret.
func NewTokens(secret string, opts ...TokenOption) *Tokens {
	t := &Tokens{secret: []byte(secret), now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Issue signs a credential for identityID valid for SessionTTL.
func (t *Tokens) Issue(identityID string) (string, error) {
	if identityID == "" {
		return "", fmt.Errorf("identity id is required")
	}
	if len(t.secret) == 0 {
		return "", fmt.Errorf("signing secret is not configured")
	}
	now := t.now()
	claims := sessionClaims{
		UserID: identityID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks the signature and age of raw and returns the embedded identity id.
func (t *Tokens) Verify(raw string) (string, error) {
	if raw == "" {
		return "", ErrNoToken
	}

	var claims sessionClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithIssuedAt(),
	)
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if claims.IssuedAt == nil {
		return "", fmt.Errorf("%w: missing iat claim", ErrInvalidSignature)
	}
	// Tokens without exp still age out from their issuance time.
	if t.now().Sub(claims.IssuedAt.Time) > SessionTTL {
		return "", ErrExpired
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: missing userId claim", ErrInvalidSignature)
	}
	return claims.UserID, nil
}
