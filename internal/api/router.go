package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/api/recovery"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/auth"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/metrics"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/services"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	ClientURL     string
	CrossSite     bool
	Authenticator *auth.Authenticator
	Sessions      *services.SessionService
	Messages      *services.MessageService
	Online        OnlineLister
	Realtime      http.Handler
	Metrics       *metrics.Metrics
	Healthy       func() bool
	Log           zerolog.Logger
}

// NewRouter wires routes to handlers. CORS and panic recovery wrap the mux
// so that preflight requests are answered before route matching.
func NewRouter(d RouterDeps) http.Handler {
	root := mux.NewRouter()
	root.Use(d.Metrics.Middleware)

	// Auth
	authHandler := NewAuthHandler(d.Sessions, d.CrossSite, d.Log)
	root.HandleFunc("/api/auth/signup", authHandler.Signup).Methods("POST")
	root.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	root.HandleFunc("/api/auth/logout", authHandler.Logout).Methods("POST")
	root.Handle("/api/auth/check", d.Authenticator.Middleware(http.HandlerFunc(authHandler.Check))).Methods("GET")

	// Messages (fixed paths before the {id} catch-all)
	msgs := NewMessageHandler(d.Messages, d.Online, d.Log)
	msgRoutes := root.PathPrefix("/api/messages").Subrouter()
	msgRoutes.Use(d.Authenticator.Middleware)
	msgRoutes.HandleFunc("/contacts", msgs.Contacts).Methods("GET")
	msgRoutes.HandleFunc("/chats", msgs.Chats).Methods("GET")
	msgRoutes.HandleFunc("/online", msgs.Online).Methods("GET")
	msgRoutes.HandleFunc("/send/{id}", msgs.Send).Methods("POST")
	msgRoutes.HandleFunc("/{messageId}/reactions", msgs.React).Methods("POST")
	msgRoutes.HandleFunc("/{id}", msgs.Conversation).Methods("GET")

	// Realtime channel
	if d.Realtime != nil {
		root.Handle("/ws", d.Realtime).Methods("GET")
	}

	// Health and metrics
	var online func() int
	if d.Online != nil {
		online = func() int { return len(d.Online.Online()) }
	}
	root.HandleFunc("/api/health", NewHealthHandler(d.Healthy, online).CheckHealth).Methods("GET")
	root.Handle("/metrics", d.Metrics.Handler()).Methods("GET")

	return recovery.Middleware(d.Log)(corsMiddleware(d.ClientURL)(root))
}
