// Package api provides the HTTP JSON surface for the chat backend.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avylis/leadchat/internal/chat"
	"github.com/avylis/leadchat/internal/session"
	"github.com/avylis/leadchat/internal/store"
)

// Handler serves the chat endpoints.
type Handler struct {
	turner   *chat.Turner
	sessions *session.Manager
	repo     store.Repository
}

// NewHandler creates a new Handler.
func NewHandler(turner *chat.Turner, sessions *session.Manager, repo store.Repository) *Handler {
	return &Handler{
		turner:   turner,
		sessions: sessions,
		repo:     repo,
	}
}

// RegisterRoutes registers the chat API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.HandleChat)
	r.Get("/healthz", h.HandleHealth)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
