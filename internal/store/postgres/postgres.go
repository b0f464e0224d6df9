package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Store is a store.Store backed directly by database/sql.
type Store struct{ db *sql.DB }

// NewWithDB wraps an open database. Call EnsureSchema first on a fresh database.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Users() store.Users       { return &users{db: s.db} }
func (s *Store) Messages() store.Messages { return &messages{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// --- Users ---
type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, in *model.Identity, passwordHash string) (*model.Identity, error) {
	id, err := store.PrepareIdentity(in, passwordHash)
	if err != nil {
		return nil, err
	}
	_, err = u.db.ExecContext(ctx, `
        INSERT INTO users (id, full_name, email, password_hash, profile_pic, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
    `, id.ID, id.FullName, id.Email, passwordHash, id.ProfilePic, store.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.EmailTakenErr(id.Email)
		}
		return nil, err
	}
	return id, nil
}

const identityColumns = `id, full_name, email, profile_pic`

func scanIdentity(row interface{ Scan(...any) error }) (*model.Identity, error) {
	var out model.Identity
	if err := row.Scan(&out.ID, &out.FullName, &out.Email, &out.ProfilePic); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *users) Get(ctx context.Context, id string) (*model.Identity, error) {
	row := u.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM users WHERE id=$1`, id)
	out, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundErr("user", id)
	}
	return out, err
}

func (u *users) GetCredentials(ctx context.Context, email string) (*model.Identity, string, error) {
	email = store.NormalizeEmail(email)
	var out model.Identity
	var hash string
	row := u.db.QueryRowContext(ctx, `
        SELECT id, full_name, email, profile_pic, password_hash FROM users WHERE email=$1
    `, email)
	if err := row.Scan(&out.ID, &out.FullName, &out.Email, &out.ProfilePic, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", store.NotFoundErr("user", email)
		}
		return nil, "", err
	}
	return &out, hash, nil
}

func (u *users) ListExcept(ctx context.Context, id string) ([]*model.Identity, error) {
	rows, err := u.db.QueryContext(ctx, `
        SELECT `+identityColumns+` FROM users WHERE id <> $1 ORDER BY full_name, id
    `, id)
	if err != nil {
		return nil, err
	}
	return collectIdentities(rows)
}

func (u *users) ListByIDs(ctx context.Context, ids []string) ([]*model.Identity, error) {
	if len(ids) == 0 {
		return []*model.Identity{}, nil
	}
	rows, err := u.db.QueryContext(ctx, `
        SELECT `+identityColumns+` FROM users WHERE id = ANY($1)
    `, ids)
	if err != nil {
		return nil, err
	}
	return collectIdentities(rows)
}

func collectIdentities(rows *sql.Rows) ([]*model.Identity, error) {
	defer rows.Close()
	out := []*model.Identity{}
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- Messages ---
type messages struct{ db *sql.DB }

func (m *messages) Create(ctx context.Context, in *model.Message) (*model.Message, error) {
	msg, err := store.PrepareMessage(in)
	if err != nil {
		return nil, err
	}
	_, err = m.db.ExecContext(ctx, `
        INSERT INTO messages (id, sender_id, receiver_id, text, image, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,0,$6,$7)
    `, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

const messageColumns = `id, sender_id, receiver_id, text, image, version, created_at, updated_at`

func scanMessage(row interface{ Scan(...any) error }) (*model.Message, error) {
	out := model.Message{Reactions: []model.Reaction{}}
	if err := row.Scan(&out.ID, &out.SenderID, &out.ReceiverID, &out.Text, &out.Image,
		&out.Version, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, err
	}
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	return &out, nil
}

func (m *messages) FindConversation(ctx context.Context, a, b string) ([]*model.Message, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT `+messageColumns+` FROM messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at, seq
    `, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Message{}
	byID := map[string]*model.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
		byID[msg.ID] = msg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	rrows, err := m.db.QueryContext(ctx, `
        SELECT r.message_id, r.user_id, r.emoji, r.created_at
        FROM message_reactions r JOIN messages m ON m.id = r.message_id
        WHERE (m.sender_id=$1 AND m.receiver_id=$2) OR (m.sender_id=$2 AND m.receiver_id=$1)
        ORDER BY r.message_id, r.position
    `, a, b)
	if err != nil {
		return nil, err
	}
	defer rrows.Close()
	for rrows.Next() {
		var mid string
		var r model.Reaction
		if err := rrows.Scan(&mid, &r.UserID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.CreatedAt = r.CreatedAt.UTC()
		if msg, ok := byID[mid]; ok {
			msg.Reactions = append(msg.Reactions, r)
		}
	}
	return out, rrows.Err()
}

func (m *messages) FindByID(ctx context.Context, id string) (*model.Message, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFoundErr("message", id)
		}
		return nil, err
	}
	rs, err := loadReactions(ctx, m.db, id)
	if err != nil {
		return nil, err
	}
	msg.Reactions = rs
	return msg, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadReactions(ctx context.Context, q querier, messageID string) ([]model.Reaction, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT user_id, emoji, created_at FROM message_reactions
        WHERE message_id=$1 ORDER BY position
    `, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Reaction{}
	for rows.Next() {
		var r model.Reaction
		if err := rows.Scan(&r.UserID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (m *messages) SaveReactions(ctx context.Context, in *model.Message) (*model.Message, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := store.Now()
	res, err := tx.ExecContext(ctx, `
        UPDATE messages SET version = version + 1, updated_at = $3
        WHERE id=$1 AND version=$2
    `, in.ID, in.Version, now)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1)`, in.ID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, store.NotFoundErr("message", in.ID)
		}
		return nil, store.ConflictErr(in.ID, in.Version)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM message_reactions WHERE message_id=$1`, in.ID); err != nil {
		return nil, err
	}
	rs := store.NormalizeReactions(in.Reactions, now)
	for i, r := range rs {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO message_reactions (message_id, user_id, emoji, position, created_at)
            VALUES ($1,$2,$3,$4,$5)
        `, in.ID, r.UserID, r.Emoji, i, r.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: duplicate reaction by %s", model.ErrValidation, r.UserID)
			}
			return nil, err
		}
	}

	row := tx.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, in.ID)
	out, err := scanMessage(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	out.Reactions = rs
	return out, nil
}

func (m *messages) Partners(ctx context.Context, id string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT partner FROM (
            SELECT CASE WHEN sender_id=$1 THEN receiver_id ELSE sender_id END AS partner,
                   MAX(created_at) AS last_at, MAX(seq) AS last_seq
            FROM messages
            WHERE sender_id=$1 OR receiver_id=$1
            GROUP BY 1
        ) p
        ORDER BY last_at DESC, last_seq DESC
    `, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
