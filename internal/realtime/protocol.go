package realtime

import "encoding/json"

// Envelope wraps every websocket frame with its event name.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client -> server frames.
const (
	TypePing = "ping"
	TypePong = "pong"
)

// NewEnvelope marshals payload into an envelope tagged with event.
func NewEnvelope(event string, payload any) (Envelope, error) {
	env := Envelope{Type: event}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Data = data
	return env, nil
}

// Encode returns the wire form of an event.
func Encode(event string, payload any) ([]byte, error) {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// ParseEnvelope decodes a frame received from a client.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
