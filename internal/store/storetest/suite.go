// Package storetest holds the compliance suite every store.Store driver runs.
package storetest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store"
)

// Run exercises the compliance suite against a store.Store implementation.
// makeStore should return a store whose schema is ready. It may be shared
// with other data; the suite only relies on rows it creates itself.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()
	suffix := uuid.New().String()[:8]

	mkUser := func(name string) *model.Identity {
		t.Helper()
		u, err := s.Users().Create(ctx, &model.Identity{
			FullName: name,
			Email:    "  " + strings.ToUpper(name) + "-" + suffix + "@Example.test ",
		}, "hash-"+name)
		if err != nil {
			t.Fatalf("CreateUser %s: %v", name, err)
		}
		if u.ID == "" {
			t.Fatalf("CreateUser %s: empty id", name)
		}
		return u
	}

	alice, bob, carol := mkUser("alice"), mkUser("bob"), mkUser("carol")

	t.Run("users", func(t *testing.T) {
		got, err := s.Users().Get(ctx, alice.ID)
		if err != nil || got.FullName != "alice" || got.Email != "alice-"+suffix+"@example.test" {
			t.Fatalf("GetUser: got=%+v err=%v", got, err)
		}

		creds, hash, err := s.Users().GetCredentials(ctx, "ALICE-"+suffix+"@example.TEST")
		if err != nil || creds.ID != alice.ID || hash != "hash-alice" {
			t.Fatalf("GetCredentials: got=%+v hash=%q err=%v", creds, hash, err)
		}

		if _, err := s.Users().Get(ctx, uuid.New().String()); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("GetUser unknown: want ErrNotFound, got %v", err)
		}
		if _, _, err := s.Users().GetCredentials(ctx, "nobody-"+suffix+"@example.test"); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("GetCredentials unknown: want ErrNotFound, got %v", err)
		}

		_, err = s.Users().Create(ctx, &model.Identity{FullName: "dup", Email: alice.Email}, "x")
		if !errors.Is(err, model.ErrConflict) {
			t.Fatalf("duplicate email: want ErrConflict, got %v", err)
		}

		others, err := s.Users().ListExcept(ctx, alice.ID)
		if err != nil {
			t.Fatalf("ListExcept: %v", err)
		}
		ids := idSet(others)
		if ids[alice.ID] || !ids[bob.ID] || !ids[carol.ID] {
			t.Fatalf("ListExcept: unexpected ids %v", ids)
		}

		byIDs, err := s.Users().ListByIDs(ctx, []string{carol.ID, bob.ID, "missing"})
		if err != nil || len(byIDs) != 2 {
			t.Fatalf("ListByIDs: n=%d err=%v", len(byIDs), err)
		}
		if empty, err := s.Users().ListByIDs(ctx, nil); err != nil || len(empty) != 0 {
			t.Fatalf("ListByIDs empty: n=%d err=%v", len(empty), err)
		}
	})

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	send := func(from, to *model.Identity, text string, at time.Duration) *model.Message {
		t.Helper()
		m, err := s.Messages().Create(ctx, &model.Message{
			SenderID: from.ID, ReceiverID: to.ID, Text: text, CreatedAt: base.Add(at),
		})
		if err != nil {
			t.Fatalf("CreateMessage %q: %v", text, err)
		}
		return m
	}

	m1 := send(alice, bob, " hello ", 1*time.Minute)
	m2 := send(bob, alice, "hi", 2*time.Minute)
	send(alice, carol, "psst", 3*time.Minute)
	m4 := send(alice, bob, "again", 4*time.Minute)

	t.Run("create", func(t *testing.T) {
		if m1.ID == "" || m1.Text != "hello" || m1.Reactions == nil || len(m1.Reactions) != 0 {
			t.Fatalf("CreateMessage: got=%+v", m1)
		}
		if !m1.CreatedAt.Equal(base.Add(time.Minute)) || !m1.UpdatedAt.Equal(m1.CreatedAt) {
			t.Fatalf("CreateMessage timestamps: created=%v updated=%v", m1.CreatedAt, m1.UpdatedAt)
		}

		bad := []*model.Message{
			{SenderID: alice.ID, ReceiverID: alice.ID, Text: "me"},
			{SenderID: alice.ID, ReceiverID: bob.ID, Text: "   "},
			{SenderID: alice.ID, ReceiverID: bob.ID, Text: strings.Repeat("a", model.MaxTextLength+1)},
		}
		for i, m := range bad {
			if _, err := s.Messages().Create(ctx, m); !errors.Is(err, model.ErrValidation) {
				t.Fatalf("bad message %d: want ErrValidation, got %v", i, err)
			}
		}

		img, err := s.Messages().Create(ctx, &model.Message{
			SenderID: carol.ID, ReceiverID: bob.ID, Image: "https://img.example/x.png", CreatedAt: base,
		})
		if err != nil || img.Image == "" || img.Text != "" {
			t.Fatalf("image-only message: got=%+v err=%v", img, err)
		}
	})

	t.Run("conversation", func(t *testing.T) {
		conv, err := s.Messages().FindConversation(ctx, bob.ID, alice.ID)
		if err != nil {
			t.Fatalf("FindConversation: %v", err)
		}
		if len(conv) != 3 || conv[0].ID != m1.ID || conv[1].ID != m2.ID || conv[2].ID != m4.ID {
			t.Fatalf("FindConversation: want [m1 m2 m4], got %v", messageIDs(conv))
		}
		for _, m := range conv {
			if m.Reactions == nil {
				t.Fatalf("FindConversation: nil reactions on %s", m.ID)
			}
		}

		none, err := s.Messages().FindConversation(ctx, bob.ID, uuid.New().String())
		if err != nil || len(none) != 0 {
			t.Fatalf("FindConversation empty: n=%d err=%v", len(none), err)
		}
	})

	t.Run("reactions", func(t *testing.T) {
		got, err := s.Messages().FindByID(ctx, m2.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if _, err := s.Messages().FindByID(ctx, uuid.New().String()); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("FindByID unknown: want ErrNotFound, got %v", err)
		}

		stale := got.Clone()
		got.Reactions = []model.Reaction{
			{UserID: alice.ID, Emoji: "👍", CreatedAt: base},
			{UserID: bob.ID, Emoji: "❤️", CreatedAt: base.Add(time.Second)},
		}
		saved, err := s.Messages().SaveReactions(ctx, got)
		if err != nil {
			t.Fatalf("SaveReactions: %v", err)
		}
		if saved.Version != got.Version+1 || len(saved.Reactions) != 2 {
			t.Fatalf("SaveReactions: version=%d reactions=%d", saved.Version, len(saved.Reactions))
		}

		reread, err := s.Messages().FindByID(ctx, m2.ID)
		if err != nil {
			t.Fatalf("FindByID after save: %v", err)
		}
		if reread.Version != saved.Version || len(reread.Reactions) != 2 ||
			reread.Reactions[0].UserID != alice.ID || reread.Reactions[0].Emoji != "👍" ||
			reread.Reactions[1].Emoji != "❤️" || !reread.Reactions[1].CreatedAt.Equal(base.Add(time.Second)) {
			t.Fatalf("FindByID after save: got=%+v", reread)
		}

		stale.Reactions = []model.Reaction{{UserID: carol.ID, Emoji: "😂"}}
		if _, err := s.Messages().SaveReactions(ctx, stale); !errors.Is(err, model.ErrConflict) {
			t.Fatalf("stale SaveReactions: want ErrConflict, got %v", err)
		}

		reread.Reactions = []model.Reaction{}
		cleared, err := s.Messages().SaveReactions(ctx, reread)
		if err != nil || len(cleared.Reactions) != 0 {
			t.Fatalf("clear reactions: got=%+v err=%v", cleared, err)
		}

		ghost := &model.Message{ID: uuid.New().String()}
		if _, err := s.Messages().SaveReactions(ctx, ghost); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("SaveReactions unknown: want ErrNotFound, got %v", err)
		}
	})

	t.Run("partners", func(t *testing.T) {
		ps, err := s.Messages().Partners(ctx, alice.ID)
		if err != nil {
			t.Fatalf("Partners: %v", err)
		}
		if len(ps) != 2 || ps[0] != bob.ID || ps[1] != carol.ID {
			t.Fatalf("Partners alice: want [bob carol], got %v", ps)
		}

		ps, err = s.Messages().Partners(ctx, carol.ID)
		if err != nil || len(ps) != 2 || ps[0] != alice.ID || ps[1] != bob.ID {
			t.Fatalf("Partners carol: want [alice bob], got %v err=%v", ps, err)
		}

		lonely := mkUser("dave")
		ps, err = s.Messages().Partners(ctx, lonely.ID)
		if err != nil || len(ps) != 0 {
			t.Fatalf("Partners none: got %v err=%v", ps, err)
		}
	})
}

func idSet(ids []*model.Identity) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, u := range ids {
		out[u.ID] = true
	}
	return out
}

func messageIDs(ms []*model.Message) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}
