package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/teambuilder-be/internal/auth"
)

// HomeHandler serves the landing page and the health check.
type HomeHandler struct {
	responder
	db Pinger
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewHomeHandler creates a new HomeHandler.
func NewHomeHandler(db Pinger, sessions *auth.Manager) *HomeHandler {
	return &HomeHandler{responder: responder{sessions: sessions}, db: db}
}

// Home renders the landing page.
func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	h.render(w, r, id, http.StatusOK, "home", nil)
}

// Health pings the database.
func (h *HomeHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
