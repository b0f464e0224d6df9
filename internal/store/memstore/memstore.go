// Package memstore is an in-process store.Store used by tests and
// DB_DRIVER=memory development runs. Nothing survives a restart.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store"
)

type userRow struct {
	identity model.Identity
	hash     string
}

// Store keeps every row in maps guarded by one mutex.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*userRow
	byEmail  map[string]string
	messages map[string]*model.Message
	order    []string // message ids in insertion order
}

func New() *Store {
	return &Store{
		users:    make(map[string]*userRow),
		byEmail:  make(map[string]string),
		messages: make(map[string]*model.Message),
	}
}

func (s *Store) Users() store.Users       { return users{s} }
func (s *Store) Messages() store.Messages { return messages{s} }

type users struct{ s *Store }

func (u users) Create(_ context.Context, in *model.Identity, passwordHash string) (*model.Identity, error) {
	id, err := store.PrepareIdentity(in, passwordHash)
	if err != nil {
		return nil, err
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, taken := u.s.byEmail[id.Email]; taken {
		return nil, store.EmailTakenErr(id.Email)
	}
	if _, taken := u.s.users[id.ID]; taken {
		return nil, store.EmailTakenErr(id.Email)
	}
	u.s.users[id.ID] = &userRow{identity: *id, hash: passwordHash}
	u.s.byEmail[id.Email] = id.ID
	out := *id
	return &out, nil
}

func (u users) Get(_ context.Context, id string) (*model.Identity, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	row, ok := u.s.users[id]
	if !ok {
		return nil, store.NotFoundErr("user", id)
	}
	out := row.identity
	return &out, nil
}

func (u users) GetCredentials(_ context.Context, email string) (*model.Identity, string, error) {
	email = store.NormalizeEmail(email)
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	id, ok := u.s.byEmail[email]
	if !ok {
		return nil, "", store.NotFoundErr("user", email)
	}
	row := u.s.users[id]
	out := row.identity
	return &out, row.hash, nil
}

func (u users) ListExcept(_ context.Context, id string) ([]*model.Identity, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	out := make([]*model.Identity, 0, len(u.s.users))
	for uid, row := range u.s.users {
		if uid == id {
			continue
		}
		cp := row.identity
		out = append(out, &cp)
	}
	sortIdentities(out)
	return out, nil
}

func (u users) ListByIDs(_ context.Context, ids []string) ([]*model.Identity, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	out := make([]*model.Identity, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		row, ok := u.s.users[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		cp := row.identity
		out = append(out, &cp)
	}
	return out, nil
}

func sortIdentities(ids []*model.Identity) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].FullName != ids[j].FullName {
			return ids[i].FullName < ids[j].FullName
		}
		return ids[i].ID < ids[j].ID
	})
}

type messages struct{ s *Store }

func (m messages) Create(_ context.Context, in *model.Message) (*model.Message, error) {
	msg, err := store.PrepareMessage(in)
	if err != nil {
		return nil, err
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.messages[msg.ID] = msg
	m.s.order = append(m.s.order, msg.ID)
	return msg.Clone(), nil
}

func (m messages) FindConversation(_ context.Context, a, b string) ([]*model.Message, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	out := []*model.Message{}
	for _, id := range m.s.order {
		msg := m.s.messages[id]
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			out = append(out, msg.Clone())
		}
	}
	// insertion order is the tiebreak for equal timestamps
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m messages) FindByID(_ context.Context, id string) (*model.Message, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	msg, ok := m.s.messages[id]
	if !ok {
		return nil, store.NotFoundErr("message", id)
	}
	return msg.Clone(), nil
}

func (m messages) SaveReactions(_ context.Context, in *model.Message) (*model.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.messages[in.ID]
	if !ok {
		return nil, store.NotFoundErr("message", in.ID)
	}
	if cur.Version != in.Version {
		return nil, store.ConflictErr(in.ID, in.Version)
	}
	now := store.Now()
	cur.Reactions = store.NormalizeReactions(in.Reactions, now)
	cur.Version++
	cur.UpdatedAt = now
	return cur.Clone(), nil
}

func (m messages) Partners(_ context.Context, id string) ([]string, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	type exchange struct {
		at  time.Time
		seq int
	}
	last := make(map[string]exchange)
	note := func(peer string, e exchange) {
		if prev, ok := last[peer]; !ok || e.at.After(prev.at) || (e.at.Equal(prev.at) && e.seq > prev.seq) {
			last[peer] = e
		}
	}
	for i, mid := range m.s.order {
		msg := m.s.messages[mid]
		e := exchange{at: msg.CreatedAt, seq: i}
		switch id {
		case msg.SenderID:
			note(msg.ReceiverID, e)
		case msg.ReceiverID:
			note(msg.SenderID, e)
		}
	}
	out := make([]string, 0, len(last))
	for p := range last {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := last[out[i]], last[out[j]]
		if !a.at.Equal(b.at) {
			return a.at.After(b.at)
		}
		return a.seq > b.seq
	})
	return out, nil
}
