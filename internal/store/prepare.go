package store

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
)

// Now is the clock drivers stamp rows with. Truncated to microseconds so
// every backend round-trips the same value.
var Now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// PrepareMessage validates m and returns a copy with id, timestamps and an
// empty reaction set filled in. Drivers call it before inserting.
func PrepareMessage(m *model.Message) (*model.Message, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: message is nil", model.ErrValidation)
	}
	out := m.Clone()
	out.Text = strings.TrimSpace(out.Text)
	out.Image = strings.TrimSpace(out.Image)

	switch {
	case out.SenderID == "" || out.ReceiverID == "":
		return nil, fmt.Errorf("%w: sender and receiver are required", model.ErrValidation)
	case out.SenderID == out.ReceiverID:
		return nil, fmt.Errorf("%w: sender and receiver must differ", model.ErrValidation)
	case out.Text == "" && out.Image == "":
		return nil, fmt.Errorf("%w: text or image is required", model.ErrValidation)
	case utf8.RuneCountInString(out.Text) > model.MaxTextLength:
		return nil, fmt.Errorf("%w: text exceeds %d characters", model.ErrValidation, model.MaxTextLength)
	}

	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	now := Now()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.CreatedAt = out.CreatedAt.UTC().Truncate(time.Microsecond)
	out.UpdatedAt = out.CreatedAt
	out.Reactions = []model.Reaction{}
	out.Version = 0
	return out, nil
}

// PrepareIdentity validates u and returns a normalised copy with an id.
func PrepareIdentity(u *model.Identity, passwordHash string) (*model.Identity, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: identity is nil", model.ErrValidation)
	}
	out := *u
	out.FullName = strings.TrimSpace(out.FullName)
	out.Email = NormalizeEmail(out.Email)
	if out.FullName == "" || out.Email == "" {
		return nil, fmt.Errorf("%w: full name and email are required", model.ErrValidation)
	}
	if passwordHash == "" {
		return nil, fmt.Errorf("%w: password hash is required", model.ErrValidation)
	}
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	return &out, nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeReactions returns a copy of rs with UTC, microsecond timestamps.
// A missing timestamp is set to now.
func NormalizeReactions(rs []model.Reaction, now time.Time) []model.Reaction {
	out := make([]model.Reaction, 0, len(rs))
	for _, r := range rs {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.CreatedAt = r.CreatedAt.UTC().Truncate(time.Microsecond)
		out = append(out, r)
	}
	return out
}

// ConflictErr builds the error drivers return when a version check fails.
func ConflictErr(messageID string, version int64) error {
	return fmt.Errorf("message %s at version %d: %w", messageID, version, model.ErrConflict)
}

// NotFoundErr builds the error drivers return for a missing row.
func NotFoundErr(kind, key string) error {
	return fmt.Errorf("%s %s: %w", kind, key, model.ErrNotFound)
}

// EmailTakenErr builds the error drivers return for a duplicate email.
func EmailTakenErr(email string) error {
	return fmt.Errorf("email %s already registered: %w", email, model.ErrConflict)
}
