package realtime

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
)

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
)

var (
	// ErrSendBufferFull is returned by Push when the client is not keeping
	// up. The connection is closed as a side effect.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrClosed is returned by Push on a closed connection.
	ErrClosed = errors.New("connection closed")
)

// Conn is one live websocket of an identity. Frames are written by a single
// goroutine in the order they were pushed.
type Conn struct {
	id       string
	identity *model.Identity
	ws       *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	log      zerolog.Logger
}

func newConn(ws *websocket.Conn, identity *model.Identity, log zerolog.Logger) *Conn {
	id := uuid.New().String()
	return &Conn{
		id:       id,
		identity: identity,
		ws:       ws,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		log:      log.With().Str("conn", id).Str("identity", identity.ID).Logger(),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Identity returns the authenticated owner of the connection.
func (c *Conn) Identity() *model.Identity { return c.identity }

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Push queues an event without blocking. A full queue drops the event and
// closes the connection.
func (c *Conn) Push(event string, payload any) error {
	data, err := Encode(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		c.closeWith(websocket.CloseTryAgainLater, "send buffer full")
		return ErrSendBufferFull
	}
}

// Close sends a going-away close frame and tears the socket down.
func (c *Conn) Close() {
	c.closeWith(websocket.CloseGoingAway, "server closing")
}

func (c *Conn) closeWith(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		_ = c.ws.Close()
	})
}

// writePump is the only writer of data frames on the socket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				c.closeWith(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.closeWith(websocket.CloseInternalServerErr, "ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump blocks until the peer goes away or the connection is closed.
func (c *Conn) readPump() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		c.handleInbound(data)
	}
}

func (c *Conn) handleInbound(data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		c.log.Debug().Err(err).Msg("ignoring malformed frame")
		return
	}
	switch env.Type {
	case TypePing:
		_ = c.Push(TypePong, nil)
	default:
		c.log.Debug().Str("type", env.Type).Msg("ignoring unknown frame type")
	}
}
