package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/api/respond"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/auth"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/services"
)

type AuthHandler struct {
	sessions  *services.SessionService
	crossSite bool
	log       zerolog.Logger
}

func NewAuthHandler(sessions *services.SessionService, crossSite bool, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, crossSite: crossSite, log: log}
}

type credentialsRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, token, err := h.sessions.Signup(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.log, "signup", err)
		return
	}
	auth.SetSessionCookie(w, token, h.crossSite)
	respond.WriteJSON(w, http.StatusCreated, u)
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, token, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.log, "login", err)
		return
	}
	auth.SetSessionCookie(w, token, h.crossSite)
	respond.WriteJSON(w, http.StatusOK, u)
}

// Logout POST /api/auth/logout. Tokens are stateless, so this only clears
// the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.crossSite)
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Check GET /api/auth/check
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	me := auth.IdentityFromContext(r.Context())
	if me == nil {
		respond.WriteUnauthorized(w, "Unauthorized - No Token Provided")
		return
	}
	respond.WriteJSON(w, http.StatusOK, me)
}
