package store

import (
	"context"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite, memstore).
type Store interface {
	Users() Users
	Messages() Messages
}

// Users persists identities and their password hashes. Lookups of unknown
// ids or emails return an error wrapping model.ErrNotFound.
type Users interface {
	Create(ctx context.Context, u *model.Identity, passwordHash string) (*model.Identity, error)
	Get(ctx context.Context, id string) (*model.Identity, error)
	GetCredentials(ctx context.Context, email string) (*model.Identity, string, error)
	ListExcept(ctx context.Context, id string) ([]*model.Identity, error)
	ListByIDs(ctx context.Context, ids []string) ([]*model.Identity, error)
}

// Messages persists direct messages and their reaction sets.
type Messages interface {
	Create(ctx context.Context, m *model.Message) (*model.Message, error)
	// FindConversation returns every message between a and b in either
	// direction, oldest first.
	FindConversation(ctx context.Context, a, b string) ([]*model.Message, error)
	FindByID(ctx context.Context, id string) (*model.Message, error)
	// SaveReactions replaces the reaction set of m if the stored version still
	// equals m.Version; otherwise it returns model.ErrConflict. The returned
	// message carries the bumped version.
	SaveReactions(ctx context.Context, m *model.Message) (*model.Message, error)
	// Partners returns the ids id has exchanged messages with, most recent
	// exchange first.
	Partners(ctx context.Context, id string) ([]string, error)
}
