package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/api/respond"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/auth"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/delivery"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/mailer"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/media"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/metrics"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/presence"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/services"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store/memstore"
)

type stubConn struct{ id string }

func (c *stubConn) ID() string             { return c.id }
func (c *stubConn) Push(string, any) error { return nil }

type testServer struct {
	handler  http.Handler
	registry *presence.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zerolog.Nop()
	st := memstore.New()
	tokens := auth.NewTokens("test-secret")
	registry := presence.NewRegistry()
	m := metrics.New()
	dispatcher := delivery.NewDispatcher(registry, m, log)

	h := NewRouter(RouterDeps{
		ClientURL:     "http://localhost:5173",
		Authenticator: auth.NewAuthenticator(tokens, st.Users(), log),
		Sessions:      services.NewSessionService(st, tokens, mailer.LogSender{Log: log}, "http://localhost:5173", log),
		Messages:      services.NewMessageService(st, media.New("", ""), dispatcher, m, log),
		Online:        registry,
		Metrics:       m,
		Healthy:       func() bool { return true },
		Log:           log,
	})
	return &testServer{handler: h, registry: registry}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func (s *testServer) signup(t *testing.T, name, email string) (*model.Identity, *http.Cookie) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": name, "email": email, "password": "secret123",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var u model.Identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	return &u, sessionCookie(t, w)
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out respond.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.Message
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	alice, cookie := s.signup(t, "Alice", "Alice@Example.test")
	assert.Equal(t, "alice@example.test", alice.Email)
	assert.True(t, cookie.HttpOnly)

	w := s.do(t, http.MethodGet, "/api/auth/check", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), alice.ID)

	w = s.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": "Alice 2", "email": "alice@example.test", "password": "secret123",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already exists", errorMessage(t, w))

	w = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.test", "password": "wrong-password",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid credentials", errorMessage(t, w))

	w = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.test", "password": "secret123",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sessionCookie(t, w)

	w = s.do(t, http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Logged out successfully")
	cleared := sessionCookie(t, w)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)
	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/auth/check"},
		{http.MethodGet, "/api/messages/contacts"},
		{http.MethodGet, "/api/messages/chats"},
		{http.MethodGet, "/api/messages/online"},
		{http.MethodGet, "/api/messages/someone"},
		{http.MethodPost, "/api/messages/send/someone"},
		{http.MethodPost, "/api/messages/m1/reactions"},
	}
	for _, p := range paths {
		w := s.do(t, p.method, p.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", p.method, p.path)
	}

	bad := &http.Cookie{Name: auth.CookieName, Value: "garbage"}
	w := s.do(t, http.MethodGet, "/api/messages/contacts", nil, bad)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized - Invalid Token", errorMessage(t, w))
}

func TestMessagingFlow(t *testing.T) {
	s := newTestServer(t)
	alice, aliceCookie := s.signup(t, "Alice", "alice@example.test")
	bob, bobCookie := s.signup(t, "Bob", "bob@example.test")

	w := s.do(t, http.MethodPost, "/api/messages/send/"+bob.ID, map[string]string{"text": "  hi bob  "}, aliceCookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sent model.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	assert.Equal(t, "hi bob", sent.Text)
	assert.Equal(t, alice.ID, sent.SenderID)
	assert.Empty(t, sent.Reactions)
	assert.Contains(t, w.Body.String(), `"reactions":[]`)

	w = s.do(t, http.MethodGet, "/api/messages/"+alice.ID, nil, bobCookie)
	require.Equal(t, http.StatusOK, w.Code)
	var convo []model.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &convo))
	require.Len(t, convo, 1)
	assert.Equal(t, sent.ID, convo[0].ID)

	w = s.do(t, http.MethodPost, "/api/messages/"+sent.ID+"/reactions", map[string]string{"emoji": "👍"}, bobCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var reacted model.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reacted))
	require.Len(t, reacted.Reactions, 1)
	assert.Equal(t, bob.ID, reacted.Reactions[0].UserID)

	w = s.do(t, http.MethodPost, "/api/messages/"+sent.ID+"/reactions", map[string]string{"emoji": "👍"}, bobCookie)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reacted))
	assert.Empty(t, reacted.Reactions)

	w = s.do(t, http.MethodGet, "/api/messages/chats", nil, bobCookie)
	require.Equal(t, http.StatusOK, w.Code)
	var partners []model.Identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &partners))
	require.Len(t, partners, 1)
	assert.Equal(t, alice.ID, partners[0].ID)

	w = s.do(t, http.MethodGet, "/api/messages/contacts", nil, aliceCookie)
	require.Equal(t, http.StatusOK, w.Code)
	var contacts []model.Identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &contacts))
	require.Len(t, contacts, 1)
	assert.Equal(t, bob.ID, contacts[0].ID)
}

func TestMessagingErrors(t *testing.T) {
	s := newTestServer(t)
	alice, cookie := s.signup(t, "Alice", "alice@example.test")

	cases := []struct {
		name    string
		path    string
		body    any
		code    int
		message string
	}{
		{"empty body", "/api/messages/send/nobody", nil, http.StatusBadRequest, "Text or image is required."},
		{"blank text", "/api/messages/send/nobody", map[string]string{"text": "   "}, http.StatusBadRequest, "Text or image is required."},
		{"self send", "/api/messages/send/" + alice.ID, map[string]string{"text": "me"}, http.StatusBadRequest, "Cannot send messages to yourself."},
		{"unknown peer", "/api/messages/send/nobody", map[string]string{"text": "hi"}, http.StatusNotFound, "Receiver not found."},
		{"missing emoji", "/api/messages/m1/reactions", map[string]string{"emoji": ""}, http.StatusBadRequest, "Emoji is required"},
		{"unknown message", "/api/messages/m1/reactions", map[string]string{"emoji": "🔥"}, http.StatusNotFound, "Message not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tc.path, tc.body, cookie)
			require.Equal(t, tc.code, w.Code, w.Body.String())
			assert.Equal(t, tc.message, errorMessage(t, w))
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/nobody", strings.NewReader("{not json"))
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := `{"image":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/api/messages/send/nobody", strings.NewReader(big))
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestOnlineListsRegisteredIdentities(t *testing.T) {
	s := newTestServer(t)
	alice, cookie := s.signup(t, "Alice", "alice@example.test")
	s.registry.Register(alice.ID, &stubConn{id: "c1"})
	s.registry.Register("zed", &stubConn{id: "c2"})

	w := s.do(t, http.MethodGet, "/api/messages/online", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var ids []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ids))
	assert.ElementsMatch(t, []string{alice.ID, "zed"}, ids)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:5173", true},
		{"http://localhost:3000", true},
		{"https://swp-fly-up.vercel.app", true},
		{"https://swp-flyup-1.onrender.com", true},
		{"https://evil.example", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
		req.Header.Set("Origin", tc.origin)
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		s.handler.ServeHTTP(w, req)

		got := w.Header().Get("Access-Control-Allow-Origin")
		if tc.allowed {
			assert.Equal(t, tc.origin, got, tc.origin)
			assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		} else {
			assert.Empty(t, got, tc.origin)
		}
	}
}

func TestOriginPolicy(t *testing.T) {
	allow := OriginPolicy("https://chat.example.com/")
	assert.True(t, allow(""))
	assert.True(t, allow("https://chat.example.com"))
	assert.False(t, allow("https://other.example.com"))
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "messenger_")
}
