package delivery

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/presence"
)

type pushed struct {
	event   string
	payload any
}

type recordingConn struct {
	id   string
	fail bool

	mu     sync.Mutex
	events []pushed
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Push(event string, payload any) error {
	if c.fail {
		return errors.New("send buffer full")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, pushed{event, payload})
	return nil
}

func (c *recordingConn) received() []pushed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]pushed(nil), c.events...)
}

func TestNotify_SkipsOfflineSilently(t *testing.T) {
	reg := presence.NewRegistry()
	d := NewDispatcher(reg, nil, zerolog.Nop())

	assert.Equal(t, 0, d.Notify([]string{"1", "2"}, EventNewMessage, "x"))
}

func TestNotify_DedupesAndCountsAccepted(t *testing.T) {
	reg := presence.NewRegistry()
	a := &recordingConn{id: "a"}
	reg.Register("1", a)
	d := NewDispatcher(reg, nil, zerolog.Nop())

	assert.Equal(t, 1, d.Notify([]string{"1", "1", "2"}, "evt", 42))
	require.Len(t, a.received(), 1)
	assert.Equal(t, pushed{"evt", 42}, a.received()[0])
}

func TestNotify_PushFailureIsSwallowed(t *testing.T) {
	reg := presence.NewRegistry()
	reg.Register("1", &recordingConn{id: "bad", fail: true})
	good := &recordingConn{id: "good"}
	reg.Register("2", good)
	d := NewDispatcher(reg, nil, zerolog.Nop())

	assert.Equal(t, 1, d.Notify([]string{"1", "2"}, "evt", nil))
	assert.Len(t, good.received(), 1)
}

func TestNewMessage_TargetsReceiverOnly(t *testing.T) {
	reg := presence.NewRegistry()
	sender, receiver := &recordingConn{id: "c1"}, &recordingConn{id: "c7"}
	reg.Register("1", sender)
	reg.Register("2", receiver)
	d := NewDispatcher(reg, nil, zerolog.Nop())

	msg := &model.Message{ID: "m", SenderID: "1", ReceiverID: "2", Text: "hi"}
	assert.Equal(t, 1, d.NewMessage(msg))

	assert.Empty(t, sender.received())
	require.Len(t, receiver.received(), 1)
	assert.Equal(t, EventNewMessage, receiver.received()[0].event)
	assert.Same(t, msg, receiver.received()[0].payload)
}

func TestReactionUpdate_TargetsBothParticipants(t *testing.T) {
	reg := presence.NewRegistry()
	sender, receiver := &recordingConn{id: "c1"}, &recordingConn{id: "c2"}
	reg.Register("1", sender)
	reg.Register("2", receiver)
	d := NewDispatcher(reg, nil, zerolog.Nop())

	msg := &model.Message{ID: "m", SenderID: "1", ReceiverID: "2"}
	assert.Equal(t, 2, d.ReactionUpdate(msg))
	assert.Equal(t, EventReactionUpdate, sender.received()[0].event)
	assert.Equal(t, EventReactionUpdate, receiver.received()[0].event)
}

func TestReactionUpdate_SupersededConnectionGetsNothing(t *testing.T) {
	reg := presence.NewRegistry()
	old, newer := &recordingConn{id: "old"}, &recordingConn{id: "new"}
	reg.Register("2", old)
	reg.Register("2", newer)
	reg.Unregister("2", old)
	d := NewDispatcher(reg, nil, zerolog.Nop())

	d.ReactionUpdate(&model.Message{ID: "m", SenderID: "1", ReceiverID: "2"})
	assert.Empty(t, old.received())
	assert.Len(t, newer.received(), 1)
}
