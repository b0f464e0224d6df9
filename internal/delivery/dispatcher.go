// Package delivery pushes events to connected identities after a mutation
// has been persisted. Delivery is at-most-once and best-effort: offline
// recipients are skipped and push failures are only logged.
package delivery

import (
	"github.com/rs/zerolog"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/metrics"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/presence"
)

// Event names understood by the web client.
const (
	EventNewMessage     = "newMessage"
	EventReactionUpdate = "reactionUpdate"
)

// Locator finds the live connection of an identity. *presence.Registry satisfies it.
type Locator interface {
	Lookup(identityID string) (presence.Conn, bool)
}

// Dispatcher resolves recipients through the presence registry and pushes to them.
type Dispatcher struct {
	presence Locator
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewDispatcher creates a dispatcher. m may be nil.
func NewDispatcher(p Locator, m *metrics.Metrics, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{presence: p, metrics: m, log: log}
}

// Notify pushes payload tagged with event to every listed identity that is
// currently connected and returns how many pushes were accepted. Duplicate
// ids are delivered once.
func (d *Dispatcher) Notify(identityIDs []string, event string, payload any) int {
	seen := make(map[string]struct{}, len(identityIDs))
	pushed := 0
	for _, id := range identityIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}

		conn, ok := d.presence.Lookup(id)
		if !ok {
			d.metrics.Event(event, metrics.OutcomeOffline)
			continue
		}
		if err := conn.Push(event, payload); err != nil {
			d.metrics.Event(event, metrics.OutcomeDropped)
			d.log.Warn().Err(err).
				Str("event", event).
				Str("identity", id).
				Str("conn", conn.ID()).
				Msg("event push failed")
			continue
		}
		d.metrics.Event(event, metrics.OutcomePushed)
		pushed++
	}
	return pushed
}

// NewMessage tells the receiver about a persisted message.
func (d *Dispatcher) NewMessage(msg *model.Message) int {
	return d.Notify([]string{msg.ReceiverID}, EventNewMessage, msg)
}

// ReactionUpdate sends the updated message to both participants.
func (d *Dispatcher) ReactionUpdate(msg *model.Message) int {
	return d.Notify(msg.Participants(), EventReactionUpdate, msg)
}
