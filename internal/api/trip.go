package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/trip-planner/internal/agent"
	"github.com/ashureev/trip-planner/internal/identity"
	"github.com/ashureev/trip-planner/internal/itinerary"
	"github.com/ashureev/trip-planner/internal/session"
	"github.com/ashureev/trip-planner/internal/state"
	"github.com/go-chi/chi/v5"
)

const defaultMemoryLimit = 20

var filenameUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// TripHandler serves trip state, itinerary export and memory endpoints.
type TripHandler struct {
	*Handler
	now func() time.Time
}

// NewTripHandler creates a trip handler.
func NewTripHandler(base *Handler) *TripHandler {
	return &TripHandler{Handler: base, now: time.Now}
}

// RegisterRoutes registers trip routes.
func (h *TripHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Route("/trip", func(r chi.Router) {
			r.Get("/state", h.GetState)
			r.Delete("/state", h.DeleteState)
			r.Get("/itinerary.ics", h.GetItineraryICS)
			r.Get("/memory", h.SearchMemory)
		})
	})
}

// GetMe returns the current user's information.
func (h *TripHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	snap := h.snapshots.Get(userID)
	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      user.UserID,
		"username":     user.Username,
		"session_id":   identity.SessionIDFromContext(r.Context()),
		"destination":  snap.String(state.KeyDestination),
		"has_snapshot": snap.Len() > 0,
	})
}

// stateView resolves the state to report: the live session when it exists,
// the user's snapshot otherwise.
func (h *TripHandler) stateView(r *http.Request) (*state.State, string, error) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if sessionID != "" {
		if _, ok := h.runtime.Sessions().Get(sessionID); ok {
			s, err := h.runtime.State(sessionID, userID)
			return s, "live", err
		}
	}
	return h.snapshots.Get(userID), "snapshot", nil
}

// GetState returns the session state and its pipeline stage.
func (h *TripHandler) GetState(w http.ResponseWriter, r *http.Request) {
	if identity.UserIDFromContext(r.Context()) == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s, source, err := h.stateView(r)
	if err != nil {
		writeStateError(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": identity.SessionIDFromContext(r.Context()),
		"source":     source,
		"stage":      s.Stage(),
		"state":      s.ToMap(),
	})
}

// DeleteState drops the live session, the user's snapshot and remembered
// conversations.
func (h *TripHandler) DeleteState(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if sessionID := identity.SessionIDFromContext(r.Context()); sessionID != "" {
		if err := h.runtime.Reset(sessionID, userID); err != nil {
			writeStateError(w, err)
			return
		}
	}
	h.snapshots.Delete(userID)

	if h.memory != nil {
		if err := h.memory.Forget(r.Context(), userID); err != nil {
			slog.Error("Failed to forget memory", "user_id", userID, "error", err)
			Error(w, http.StatusInternalServerError, "failed to clear memory")
			return
		}
	}

	slog.Info("Trip state reset", "user_id", userID)
	JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// GetItineraryICS exports the saved itinerary as an iCalendar file. Day 1
// falls on ?start=YYYY-MM-DD, today when omitted.
func (h *TripHandler) GetItineraryICS(w http.ResponseWriter, r *http.Request) {
	if identity.UserIDFromContext(r.Context()) == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	now := h.now().UTC()
	start := now.Truncate(24 * time.Hour)
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			Error(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
		start = parsed
	}

	s, _, err := h.stateView(r)
	if err != nil {
		writeStateError(w, err)
		return
	}
	it, ok := s.Itinerary(state.KeyItinerary)
	if !ok {
		Error(w, http.StatusNotFound, "no saved itinerary")
		return
	}

	ics, err := itinerary.ExportICS(it, start, now)
	if errors.Is(err, itinerary.ErrEmptyItinerary) {
		Error(w, http.StatusNotFound, "itinerary has no events")
		return
	}
	if err != nil {
		slog.Error("Failed to export itinerary", "error", err)
		Error(w, http.StatusInternalServerError, "failed to export itinerary")
		return
	}

	name := strings.Trim(filenameUnsafe.ReplaceAllString(strings.ToLower(it.Destination), "-"), "-")
	if name == "" {
		name = "trip"
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(ics)); err != nil {
		slog.Debug("Failed to write calendar", "error", err)
	}
}

// SearchMemory searches the user's past conversations.
func (h *TripHandler) SearchMemory(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.memory == nil {
		Error(w, http.StatusNotImplemented, "memory is disabled")
		return
	}

	limit := defaultMemoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	query := r.URL.Query().Get("q")
	hits, err := h.memory.SearchMemory(r.Context(), userID, query, limit)
	if err != nil {
		slog.Error("Memory search failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "memory search failed")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"query": query,
		"hits":  hits,
	})
}

func writeStateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrTurnInProgress):
		Error(w, http.StatusConflict, "turn in progress")
	case errors.Is(err, agent.ErrSessionOwner):
		Error(w, http.StatusForbidden, "session belongs to another user")
	default:
		slog.Error("Failed to read session state", "error", err)
		Error(w, http.StatusInternalServerError, "failed to read session state")
	}
}
