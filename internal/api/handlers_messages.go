package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/api/respond"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/auth"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/services"
)

// OnlineLister reports identities holding a live connection.
// *presence.Registry satisfies it.
type OnlineLister interface {
	Online() []string
}

type MessageHandler struct {
	svc    *services.MessageService
	online OnlineLister
	log    zerolog.Logger
}

func NewMessageHandler(svc *services.MessageService, online OnlineLister, log zerolog.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, online: online, log: log}
}

// requireIdentity returns the caller set by the auth middleware.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*model.Identity, bool) {
	me := auth.IdentityFromContext(r.Context())
	if me == nil {
		respond.WriteUnauthorized(w, "Unauthorized - No Token Provided")
		return nil, false
	}
	return me, true
}

// Contacts GET /api/messages/contacts
func (h *MessageHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	me, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	out, err := h.svc.ListContacts(r.Context(), me.ID)
	if err != nil {
		writeServiceError(w, h.log, "contacts", err)
		return
	}
	if out == nil {
		out = []*model.Identity{}
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// Chats GET /api/messages/chats
func (h *MessageHandler) Chats(w http.ResponseWriter, r *http.Request) {
	me, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	out, err := h.svc.ListPartners(r.Context(), me.ID)
	if err != nil {
		writeServiceError(w, h.log, "chats", err)
		return
	}
	if out == nil {
		out = []*model.Identity{}
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// Online GET /api/messages/online
func (h *MessageHandler) Online(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}
	respond.WriteJSON(w, http.StatusOK, h.online.Online())
}

// Conversation GET /api/messages/{id}
func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	me, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Conversation(r.Context(), me.ID, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.log, "conversation", err)
		return
	}
	if out == nil {
		out = []*model.Message{}
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// Send POST /api/messages/send/{id}
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	me, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req struct {
		Text  string `json:"text"`
		Image string `json:"image"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.svc.Send(r.Context(), me.ID, mux.Vars(r)["id"], req.Text, req.Image)
	if err != nil {
		writeServiceError(w, h.log, "send", err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, msg)
}

// React POST /api/messages/{messageId}/reactions
func (h *MessageHandler) React(w http.ResponseWriter, r *http.Request) {
	me, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req struct {
		Emoji string `json:"emoji"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.svc.ToggleReaction(r.Context(), me.ID, mux.Vars(r)["messageId"], req.Emoji)
	if err != nil {
		writeServiceError(w, h.log, "react", err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, msg)
}
