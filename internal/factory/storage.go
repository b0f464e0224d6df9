package factory

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/config"
	storepkg "github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store/memstore"
	storepg "github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store/postgres"
	storesqlite "github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store/sqlite"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewStore opens the store selected by cfg.DBDriver and ensures its schema.
// The returned closer releases the underlying connection pool.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, io.Closer, error) {
	switch cfg.DBDriver {
	case "memory":
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return memstore.New(), nopCloser{}, nil

	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("MESSENGER_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := ensure(ctx, db, storepg.EnsureSchema); err != nil {
			return nil, nil, err
		}
		log.Debug().Str("driver", cfg.DBDriver).Msg("store schema ready")
		return storepg.NewWithDB(db), db, nil

	case "sqlite":
		db, err := storesqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := ensure(ctx, db, storesqlite.EnsureSchema); err != nil {
			return nil, nil, err
		}
		log.Debug().Str("driver", cfg.DBDriver).Str("path", cfg.SQLitePath).Msg("store schema ready")
		return storesqlite.NewWithDB(db), db, nil

	default:
		return nil, nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}

func ensure(ctx context.Context, db *sql.DB, fn func(context.Context, *sql.DB) error) error {
	if err := fn(ctx, db); err != nil {
		_ = db.Close()
		return err
	}
	return nil
}
