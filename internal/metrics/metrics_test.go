package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.SetConnections(3)
	m.Event("newMessage", OutcomePushed)
	m.ReactionConflict()

	called := false
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestMetrics_ExposesCollectors(t *testing.T) {
	m := New()
	m.SetConnections(2)
	m.Event("reactionUpdate", OutcomeOffline)

	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/api/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/messages/7", nil))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()

	assert.Contains(t, body, "messenger_connections_online 2")
	assert.Contains(t, body, `messenger_events_total{event="reactionUpdate",outcome="offline"} 1`)
	assert.True(t, strings.Contains(body, `route="/api/messages/{id}"`) && strings.Contains(body, `status="418"`), body)
}
