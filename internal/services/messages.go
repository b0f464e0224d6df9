package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/media"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/metrics"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/reaction"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store"
)

// MaxSaveAttempts bounds the optimistic retry loop of ToggleReaction.
const MaxSaveAttempts = 5

// Notifier pushes post-persistence events. *delivery.Dispatcher satisfies it.
type Notifier interface {
	NewMessage(msg *model.Message) int
	ReactionUpdate(msg *model.Message) int
}

// MessageService orchestrates sending, listing and reacting to messages.
type MessageService struct {
	store    store.Store
	uploader media.Uploader
	notifier Notifier
	locks    *reaction.Locker
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewMessageService(st store.Store, uploader media.Uploader, notifier Notifier, m *metrics.Metrics, log zerolog.Logger) *MessageService {
	return &MessageService{
		store:    st,
		uploader: uploader,
		notifier: notifier,
		locks:    reaction.NewLocker(),
		metrics:  m,
		log:      log,
	}
}

// ListContacts returns every identity except me.
func (s *MessageService) ListContacts(ctx context.Context, me string) ([]*model.Identity, error) {
	return s.store.Users().ListExcept(ctx, me)
}

// ListPartners returns the identities me has exchanged messages with, most
// recent exchange first.
func (s *MessageService) ListPartners(ctx context.Context, me string) ([]*model.Identity, error) {
	ids, err := s.store.Messages().Partners(ctx, me)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Identity{}, nil
	}
	found, err := s.store.Users().ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Identity, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	out := make([]*model.Identity, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// Conversation returns the messages between me and peer, oldest first.
func (s *MessageService) Conversation(ctx context.Context, me, peer string) ([]*model.Message, error) {
	return s.store.Messages().FindConversation(ctx, me, peer)
}

// Send persists a message from me to peer and then notifies peer if online.
func (s *MessageService) Send(ctx context.Context, me, peer, text, image string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	image = strings.TrimSpace(image)
	switch {
	case text == "" && image == "":
		return nil, errEmptyContent
	case me == peer:
		return nil, errSelfSend
	case utf8.RuneCountInString(text) > model.MaxTextLength:
		return nil, errTextTooLong
	}

	if _, err := s.store.Users().Get(ctx, peer); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, errPeerNotFound
		}
		return nil, fmt.Errorf("lookup receiver: %w", err)
	}

	var imageURL string
	if image != "" {
		url, err := s.uploader.Upload(ctx, image)
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}
		imageURL = url
	}

	msg, err := s.store.Messages().Create(ctx, &model.Message{
		SenderID:   me,
		ReceiverID: peer,
		Text:       text,
		Image:      imageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	pushed := s.notifier.NewMessage(msg)
	s.log.Debug().
		Str("message_id", msg.ID).
		Str("sender", me).
		Str("receiver", peer).
		Bool("delivered", pushed > 0).
		Msg("message sent")
	return msg, nil
}

// ToggleReaction flips me's emoji on a message and notifies both participants.
// Concurrent toggles on one message are serialised in-process by a keyed lock
// and across processes by the store's version check.
func (s *MessageService) ToggleReaction(ctx context.Context, me, messageID, emoji string) (*model.Message, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, errMissingEmoji
	}

	unlock := s.locks.Lock(messageID)
	saved, tr, err := s.toggleLocked(ctx, me, messageID, emoji)
	unlock()
	if err != nil {
		return nil, err
	}

	s.notifier.ReactionUpdate(saved)
	s.log.Debug().
		Str("message_id", messageID).
		Str("user", me).
		Str("transition", tr.Kind()).
		Str("from", tr.From).
		Str("to", tr.To).
		Msg("reaction toggled")
	return saved, nil
}

func (s *MessageService) toggleLocked(ctx context.Context, me, messageID, emoji string) (*model.Message, reaction.Transition, error) {
	for attempt := 1; ; attempt++ {
		msg, err := s.store.Messages().FindByID(ctx, messageID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, reaction.Transition{}, errMessageNotFound
			}
			return nil, reaction.Transition{}, fmt.Errorf("load message: %w", err)
		}
		// only the two participants may react; others see no such message
		if msg.SenderID != me && msg.ReceiverID != me {
			return nil, reaction.Transition{}, errMessageNotFound
		}

		tr, err := reaction.Toggle(msg, me, emoji, store.Now())
		if err != nil {
			if errors.Is(err, reaction.ErrMissingEmoji) {
				return nil, reaction.Transition{}, errMissingEmoji
			}
			return nil, reaction.Transition{}, err
		}

		saved, err := s.store.Messages().SaveReactions(ctx, msg)
		switch {
		case err == nil:
			return saved, tr, nil
		case errors.Is(err, model.ErrConflict) && attempt < MaxSaveAttempts:
			s.metrics.ReactionConflict()
			s.log.Debug().Str("message_id", messageID).Int("attempt", attempt).Msg("reaction save conflict; retrying")
		case errors.Is(err, model.ErrNotFound):
			return nil, reaction.Transition{}, errMessageNotFound
		default:
			return nil, reaction.Transition{}, fmt.Errorf("save reactions: %w", err)
		}
	}
}
