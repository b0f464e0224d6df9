package api

import (
	"net/http"
	"time"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/api/respond"
)

// HealthHandler reports the cached service health computed by the health
// aggregator.
type HealthHandler struct {
	isHealthy func() bool
	online    func() int
}

// NewHealthHandler binds the handler to a health probe. online may be nil.
func NewHealthHandler(isHealthy func() bool, online func() int) *HealthHandler {
	if isHealthy == nil {
		isHealthy = func() bool { return false }
	}
	return &HealthHandler{isHealthy: isHealthy, online: online}
}

// CheckHealth handles GET /api/health. 200 when healthy, 503 otherwise.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if !h.isHealthy() {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	body := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.online != nil {
		body["connections"] = h.online()
	}
	respond.WriteJSON(w, code, body)
}
