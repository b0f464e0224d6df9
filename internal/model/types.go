package model

import "time"

// MaxTextLength bounds the trimmed text body of a message.
const MaxTextLength = 300

// Identity is an account able to send, receive and react to messages.
// The JSON shape matches what the web client already consumes.
type Identity struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
}

// Message is a direct message between two identities. Only its reaction set
// changes after creation.
type Message struct {
	ID         string     `json:"_id"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	Text       string     `json:"text,omitempty"`
	Image      string     `json:"image,omitempty"`
	Reactions  []Reaction `json:"reactions"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`

	// Version is bumped on every reaction write and guards concurrent saves.
	Version int64 `json:"-"`
}

// Reaction is one user's emoji on a message. At most one per user per message.
type Reaction struct {
	UserID    string    `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// Participants returns the sender and receiver ids.
func (m *Message) Participants() []string {
	return []string{m.SenderID, m.ReceiverID}
}

// Clone returns a deep copy so callers can mutate reactions without
// affecting a shared instance.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	out.Reactions = append([]Reaction(nil), m.Reactions...)
	if out.Reactions == nil {
		out.Reactions = []Reaction{}
	}
	return &out
}
