// Package sqlite is the single-file store.Store driver built on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store"
)

// Store is a store.Store backed by a SQLite database.
type Store struct{ db *sql.DB }

// NewWithDB wraps an open database. Call EnsureSchema first on a fresh file.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Users() store.Users       { return &users{db: s.db} }
func (s *Store) Messages() store.Messages { return &messages{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// --- Users ---
type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, in *model.Identity, passwordHash string) (*model.Identity, error) {
	id, err := store.PrepareIdentity(in, passwordHash)
	if err != nil {
		return nil, err
	}
	_, err = u.db.ExecContext(ctx, `
        INSERT INTO users (id, full_name, email, password_hash, profile_pic, created_at)
        VALUES (?,?,?,?,?,?)
    `, id.ID, id.FullName, id.Email, passwordHash, id.ProfilePic, toNanos(store.Now()))
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
	out, err := scanIdentity(u.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM users WHERE id=?`, id))
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
        SELECT id, full_name, email, profile_pic, password_hash FROM users WHERE email=?
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
        SELECT `+identityColumns+` FROM users WHERE id <> ? ORDER BY full_name, id
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
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := u.db.QueryContext(ctx, `
        SELECT `+identityColumns+` FROM users WHERE id IN (`+placeholders+`)
    `, args...)
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
        VALUES (?,?,?,?,?,0,?,?)
    `, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, toNanos(msg.CreatedAt), toNanos(msg.UpdatedAt))
	if err != nil {
		return nil, err
	}
	return msg, nil
}

const messageColumns = `id, sender_id, receiver_id, text, image, version, created_at, updated_at`

func scanMessage(row interface{ Scan(...any) error }) (*model.Message, error) {
	out := model.Message{Reactions: []model.Reaction{}}
	var created, updated int64
	if err := row.Scan(&out.ID, &out.SenderID, &out.ReceiverID, &out.Text, &out.Image,
		&out.Version, &created, &updated); err != nil {
		return nil, err
	}
	out.CreatedAt = fromNanos(created)
	out.UpdatedAt = fromNanos(updated)
	return &out, nil
}

func (m *messages) FindConversation(ctx context.Context, a, b string) ([]*model.Message, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT `+messageColumns+` FROM messages
        WHERE (sender_id=? AND receiver_id=?) OR (sender_id=? AND receiver_id=?)
        ORDER BY created_at, rowid
    `, a, b, b, a)
	if err != nil {
		return nil, err
	}
	out := []*model.Message{}
	byID := map[string]*model.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, msg)
		byID[msg.ID] = msg
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// single connection: release it before the next query
	_ = rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	rrows, err := m.db.QueryContext(ctx, `
        SELECT r.message_id, r.user_id, r.emoji, r.created_at
        FROM message_reactions r JOIN messages m ON m.id = r.message_id
        WHERE (m.sender_id=? AND m.receiver_id=?) OR (m.sender_id=? AND m.receiver_id=?)
        ORDER BY r.message_id, r.position
    `, a, b, b, a)
	if err != nil {
		return nil, err
	}
	defer rrows.Close()
	for rrows.Next() {
		var mid string
		var r model.Reaction
		var at int64
		if err := rrows.Scan(&mid, &r.UserID, &r.Emoji, &at); err != nil {
			return nil, err
		}
		r.CreatedAt = fromNanos(at)
		if msg, ok := byID[mid]; ok {
			msg.Reactions = append(msg.Reactions, r)
		}
	}
	return out, rrows.Err()
}

func (m *messages) FindByID(ctx context.Context, id string) (*model.Message, error) {
	msg, err := scanMessage(m.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=?`, id))
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
        WHERE message_id=? ORDER BY position
    `, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Reaction{}
	for rows.Next() {
		var r model.Reaction
		var at int64
		if err := rows.Scan(&r.UserID, &r.Emoji, &at); err != nil {
			return nil, err
		}
		r.CreatedAt = fromNanos(at)
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
        UPDATE messages SET version = version + 1, updated_at = ?
        WHERE id=? AND version=?
    `, toNanos(now), in.ID, in.Version)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM messages WHERE id=?`, in.ID).Scan(&exists); err != nil {
			return nil, err
		}
		if exists == 0 {
			return nil, store.NotFoundErr("message", in.ID)
		}
		return nil, store.ConflictErr(in.ID, in.Version)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM message_reactions WHERE message_id=?`, in.ID); err != nil {
		return nil, err
	}
	rs := store.NormalizeReactions(in.Reactions, now)
	for i, r := range rs {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO message_reactions (message_id, user_id, emoji, position, created_at)
            VALUES (?,?,?,?,?)
        `, in.ID, r.UserID, r.Emoji, i, toNanos(r.CreatedAt)); err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: duplicate reaction by %s", model.ErrValidation, r.UserID)
			}
			return nil, err
		}
	}

	out, err := scanMessage(tx.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=?`, in.ID))
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
            SELECT CASE WHEN sender_id=? THEN receiver_id ELSE sender_id END AS partner,
                   MAX(created_at) AS last_at, MAX(rowid) AS last_seq
            FROM messages
            WHERE sender_id=? OR receiver_id=?
            GROUP BY partner
        )
        ORDER BY last_at DESC, last_seq DESC
    `, id, id, id)
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
