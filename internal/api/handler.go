// Package api provides HTTP handlers for the trip planner API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ashureev/trip-planner/internal/agent"
	"github.com/ashureev/trip-planner/internal/domain"
	"github.com/ashureev/trip-planner/internal/state"
	"github.com/ashureev/trip-planner/internal/store"
)

// MemoryIndex searches and forgets a user's past conversations.
type MemoryIndex interface {
	SearchMemory(ctx context.Context, userID, query string, limit int) ([]domain.MemoryHit, error)
	Forget(ctx context.Context, userID string) error
}

// Handler provides common handler utilities.
type Handler struct {
	repo      store.Repository
	runtime   *agent.Runtime
	snapshots *state.Store
	memory    MemoryIndex
}

// NewHandler creates a new Handler with common dependencies. memory may be nil.
func NewHandler(repo store.Repository, rt *agent.Runtime, snapshots *state.Store, memory MemoryIndex) *Handler {
	return &Handler{
		repo:      repo,
		runtime:   rt,
		snapshots: snapshots,
		memory:    memory,
	}
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
