package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// OriginPolicy returns the browser origins allowed to call the API with
// credentials: the configured client, the local dev servers and the hosted
// preview domains. An empty origin (same-origin or non-browser) is allowed.
func OriginPolicy(clientURL string) func(origin string) bool {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if c := strings.TrimRight(strings.TrimSpace(clientURL), "/"); c != "" {
		allowed[c] = true
	}
	return func(origin string) bool {
		if origin == "" || allowed[origin] {
			return true
		}
		return strings.Contains(origin, "vercel.app") || strings.Contains(origin, "onrender.com")
	}
}

func corsMiddleware(clientURL string) func(http.Handler) http.Handler {
	allow := OriginPolicy(clientURL)
	return cors.Handler(cors.Options{
		AllowOriginFunc:  func(_ *http.Request, origin string) bool { return allow(origin) },
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Cookie"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
