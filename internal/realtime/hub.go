// Package realtime serves the websocket channel: handshake, per-connection
// pumps and registration with the presence registry.
package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/api/respond"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/auth"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/metrics"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/presence"
)

// Handshaker authenticates an upgrade request. *auth.Authenticator satisfies it.
type Handshaker interface {
	Handshake(r *http.Request) (*model.Identity, error)
}

// Hub accepts websocket connections and keeps the presence registry in step
// with them.
type Hub struct {
	registry *presence.Registry
	auth     Handshaker
	limiter  *limiterPool
	metrics  *metrics.Metrics
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithCheckOrigin sets the upgrade origin policy.
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

// WithHandshakeLimit sets the per-identity handshake rate.
func WithHandshakeLimit(rps float64, burst int) HubOption {
	return func(h *Hub) { h.limiter = &limiterPool{rps: rps, burst: burst} }
}

// WithMetrics enables instrumentation.
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

func NewHub(registry *presence.Registry, authn Handshaker, log zerolog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		registry: registry,
		auth:     authn,
		limiter:  &limiterPool{},
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*Conn]struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ServeHTTP authenticates, upgrades and then serves the connection until it
// closes. Refused handshakes get a 401 JSON body {"error": "<code>"}.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.auth.Handshake(r)
	if err != nil {
		var herr *auth.HandshakeError
		if errors.As(err, &herr) {
			h.log.Debug().Str("code", herr.Code).Msg("websocket handshake refused")
			respond.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": herr.Code})
			return
		}
		h.log.Error().Stack().Err(err).Msg("websocket handshake failed")
		respond.WriteInternalError(w, "Internal server error")
		return
	}
	if !h.limiter.Allow(identity.ID) {
		respond.WriteTooManyRequests(w, "Too many connection attempts")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the error response
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := newConn(ws, identity, h.log)
	if !h.track(conn) {
		conn.Close()
		return
	}
	defer h.wg.Done()

	if prev := h.registry.Register(identity.ID, conn); prev != nil && prev != conn {
		h.log.Info().Str("identity", identity.ID).Str("superseded", prev.ID()).Str("conn", conn.ID()).
			Msg("newer connection replaces previous one")
	}
	h.metrics.SetConnections(h.registry.Len())
	h.log.Info().Str("identity", identity.ID).Str("conn", conn.ID()).Msg("client connected")

	go conn.writePump()
	conn.readPump()

	// exactly one unregister per connection
	h.registry.Unregister(identity.ID, conn)
	h.untrack(conn)
	conn.Close()
	h.metrics.SetConnections(h.registry.Len())
	h.log.Info().Str("identity", identity.ID).Str("conn", conn.ID()).Msg("client disconnected")
}

func (h *Hub) track(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Hub) untrack(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// Shutdown refuses new connections, closes every live one (including
// superseded connections) and waits for their handlers to return.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	h.registry.Drain()
	for _, c := range conns {
		c.Close()
	}
	h.metrics.SetConnections(0)

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
