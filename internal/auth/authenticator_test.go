package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
)

type fakeUsers struct {
	byID map[string]*model.Identity
	err  error
}

func (f *fakeUsers) Get(_ context.Context, id string) (*model.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return u, nil
}

func newTestAuthenticator(users *fakeUsers) *Authenticator {
	return NewAuthenticator(NewTokens("secret"), users, zerolog.Nop())
}

func alice() *model.Identity {
	return &model.Identity{ID: "1", FullName: "alice", Email: "alice@example.test"}
}

func requestWithToken(t *testing.T, token string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		r.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	}
	return r
}

func TestAuthenticate(t *testing.T) {
	users := &fakeUsers{byID: map[string]*model.Identity{"1": alice()}}
	a := newTestAuthenticator(users)
	ctx := context.Background()

	valid, err := a.Tokens().Issue("1")
	require.NoError(t, err)
	ghost, err := a.Tokens().Issue("999")
	require.NoError(t, err)

	ident, err := a.Authenticate(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, "alice", ident.FullName)

	_, err = a.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = a.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = a.Authenticate(ctx, ghost)
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestAuthenticate_InfrastructureErrorIsNotAuthError(t *testing.T) {
	a := newTestAuthenticator(&fakeUsers{err: errors.New("db down")})
	tok, err := a.Tokens().Issue("1")
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background(), tok)
	require.Error(t, err)
	assert.False(t, IsAuthError(err))
}

func TestMiddleware(t *testing.T) {
	users := &fakeUsers{byID: map[string]*model.Identity{"1": alice()}}
	a := newTestAuthenticator(users)
	valid, _ := a.Tokens().Issue("1")
	ghost, _ := a.Tokens().Issue("2")

	var seen *model.Identity
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name    string
		token   string
		status  int
		message string
	}{
		{"valid", valid, http.StatusOK, ""},
		{"missing", "", http.StatusUnauthorized, "Unauthorized - No Token Provided"},
		{"invalid", "abc.def.ghi", http.StatusUnauthorized, "Unauthorized - Invalid Token"},
		{"unknown user", ghost, http.StatusUnauthorized, "Unauthorized - User Not Found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = nil
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, requestWithToken(t, tc.token))
			assert.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "1", seen.ID)
				return
			}
			assert.Nil(t, seen)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.message, body["message"])
		})
	}
}

func TestMiddleware_InfrastructureFailureIs500(t *testing.T) {
	a := newTestAuthenticator(&fakeUsers{err: errors.New("db down")})
	tok, _ := a.Tokens().Issue("1")
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, requestWithToken(t, tok))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHandshake(t *testing.T) {
	users := &fakeUsers{byID: map[string]*model.Identity{"1": alice()}}
	a := newTestAuthenticator(users)
	valid, _ := a.Tokens().Issue("1")
	ghost, _ := a.Tokens().Issue("2")

	ident, err := a.Handshake(requestWithToken(t, valid))
	require.NoError(t, err)
	assert.Equal(t, "1", ident.ID)

	for token, code := range map[string]string{
		"":      CodeNoToken,
		"x.y.z": CodeInvalidToken,
		ghost:   CodeUserNotFound,
	} {
		_, err := a.Handshake(requestWithToken(t, token))
		var he *HandshakeError
		require.True(t, errors.As(err, &he), "token %q", token)
		assert.Equal(t, code, he.Code)
	}
}

func TestSessionCookie(t *testing.T) {
	t.Run("same-site", func(t *testing.T) {
		rr := httptest.NewRecorder()
		SetSessionCookie(rr, "tok", false)
		header := rr.Header().Get("Set-Cookie")
		assert.Contains(t, header, "jwt=tok")
		assert.Contains(t, header, "HttpOnly")
		assert.Contains(t, header, "Max-Age=604800")
		assert.Contains(t, header, "SameSite=Lax")
		assert.NotContains(t, header, "Secure")
	})

	t.Run("cross-site", func(t *testing.T) {
		rr := httptest.NewRecorder()
		SetSessionCookie(rr, "tok", true)
		header := rr.Header().Get("Set-Cookie")
		assert.Contains(t, header, "SameSite=None")
		assert.Contains(t, header, "Secure")
	})

	t.Run("clear", func(t *testing.T) {
		rr := httptest.NewRecorder()
		ClearSessionCookie(rr, false)
		header := rr.Header().Get("Set-Cookie")
		assert.True(t, strings.HasPrefix(header, "jwt=;"), header)
		assert.Contains(t, header, "Max-Age=0")
	})
}
