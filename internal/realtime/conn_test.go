package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
)

// rawSocket returns the client side of a websocket whose server end just
// holds the connection open.
func rawSocket(t *testing.T) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestPushDropsAndClosesWhenBufferFull(t *testing.T) {
	c := newConn(rawSocket(t), &model.Identity{ID: "alice"}, zerolog.Nop())

	// no writer is running, so the queue only fills
	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.Push("newMessage", i))
	}
	err := c.Push("newMessage", "overflow")
	assert.ErrorIs(t, err, ErrSendBufferFull)

	select {
	case <-c.Done():
	default:
		t.Fatal("connection should be closed after overflow")
	}
	assert.ErrorIs(t, c.Push("newMessage", "late"), ErrClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	c := newConn(rawSocket(t), &model.Identity{ID: "bob"}, zerolog.Nop())
	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Push("reactionUpdate", nil), ErrClosed)
}

func TestPushRejectsUnencodablePayload(t *testing.T) {
	c := newConn(rawSocket(t), &model.Identity{ID: "bob"}, zerolog.Nop())
	err := c.Push("newMessage", make(chan int))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClosed)
}

func TestEncodeEnvelope(t *testing.T) {
	data, err := Encode("newMessage", map[string]string{"_id": "m1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"newMessage","data":{"_id":"m1"}}`, string(data))

	data, err = Encode(TypePong, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))
}
