// Package reaction implements the per-user emoji toggle on a message.
package reaction

import (
	"errors"
	"strings"
	"time"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
)

// ErrMissingEmoji is returned when the requested emoji is blank.
var ErrMissingEmoji = errors.New("emoji is required")

// Transition describes how one user's reaction changed. An empty From or To
// means the user had no reaction on that side of the toggle.
type Transition struct {
	From string
	To   string
}

// Kind names the transition for logging.
func (t Transition) Kind() string {
	switch {
	case t.From == "" && t.To != "":
		return "add"
	case t.From != "" && t.To == "":
		return "retract"
	case t.From != t.To:
		return "replace"
	default:
		return "none"
	}
}

// Toggle applies userID's emoji to msg in place:
//
//	none         -> Reacted(emoji)
//	Reacted(e)   -> none        when e == emoji
//	Reacted(e)   -> Reacted(emoji) otherwise
//
// A replaced reaction moves to the end of the set with createdAt = now.
// Reactions of other users are never touched.
func Toggle(msg *model.Message, userID, emoji string, now time.Time) (Transition, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return Transition{}, ErrMissingEmoji
	}

	var prev string
	kept := make([]model.Reaction, 0, len(msg.Reactions)+1)
	for _, r := range msg.Reactions {
		if r.UserID == userID {
			prev = r.Emoji
			continue
		}
		kept = append(kept, r)
	}

	if prev == emoji {
		msg.Reactions = kept
		return Transition{From: prev}, nil
	}

	msg.Reactions = append(kept, model.Reaction{UserID: userID, Emoji: emoji, CreatedAt: now})
	return Transition{From: prev, To: emoji}, nil
}

// Current returns userID's emoji on msg, or "" when there is none.
func Current(msg *model.Message, userID string) string {
	for _, r := range msg.Reactions {
		if r.UserID == userID {
			return r.Emoji
		}
	}
	return ""
}
