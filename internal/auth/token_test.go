package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestTokens_IssueVerifyRoundTrip(t *testing.T) {
	tokens := NewTokens("secret")
	raw, err := tokens.Issue("42")
	require.NoError(t, err)

	id, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestTokens_Expiry(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	verifier := NewTokens("secret", WithClock(fixedClock(now)))

	t.Run("issued 8 days ago is expired", func(t *testing.T) {
		raw, err := NewTokens("secret", WithClock(fixedClock(now.Add(-8*24*time.Hour)))).Issue("1")
		require.NoError(t, err)
		_, err = verifier.Verify(raw)
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("issued 6 days ago is valid", func(t *testing.T) {
		raw, err := NewTokens("secret", WithClock(fixedClock(now.Add(-6*24*time.Hour)))).Issue("1")
		require.NoError(t, err)
		id, err := verifier.Verify(raw)
		require.NoError(t, err)
		assert.Equal(t, "1", id)
	})

	t.Run("no exp claim still ages out from iat", func(t *testing.T) {
		claims := sessionClaims{
			UserID:           "1",
			RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(now.Add(-8 * 24 * time.Hour))},
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = verifier.Verify(raw)
		assert.ErrorIs(t, err, ErrExpired)
	})
}

func TestTokens_RejectsBadCredentials(t *testing.T) {
	tokens := NewTokens("secret")

	_, err := tokens.Verify("")
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = tokens.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	forged, err := NewTokens("other-secret").Issue("1")
	require.NoError(t, err)
	_, err = tokens.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// alg=none must never be accepted
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, sessionClaims{
		UserID:           "1",
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokens_IssueRequiresIdentity(t *testing.T) {
	_, err := NewTokens("secret").Issue("")
	assert.Error(t, err)

	_, err = NewTokens("").Issue("1")
	assert.Error(t, err)
}
