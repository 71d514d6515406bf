package agent

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/trip-planner/internal/identity"
	"github.com/ashureev/trip-planner/internal/session"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the maximum allowed chat request body size (64KB).
const defaultMaxRequestBodySize = 64 << 10

// Handler serves chat turns over HTTP and WebSocket.
type Handler struct {
	runtime       *Runtime
	rateLimiter   *RateLimiter
	allowedOrigin string
	isDev         bool
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Runtime       *Runtime
	RateLimiter   *RateLimiter
	AllowedOrigin string
	IsDev         bool
}

// NewHandler creates a chat handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.RateLimiter == nil {
		cfg.RateLimiter = NewRateLimiter(30, time.Minute)
	}
	return &Handler{
		runtime:       cfg.Runtime,
		rateLimiter:   cfg.RateLimiter,
		allowedOrigin: cfg.AllowedOrigin,
		isDev:         cfg.IsDev,
	}
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/trip/chat", h.HandleChat)
	r.Get("/ws/chat", h.HandleWebSocket)
}

// HandleChat handles POST /api/trip/chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.rateLimiter.Allow(userID) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxRequestBodySize)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("Trip chat request",
		"user_id", userID,
		"session_id", sessionID,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"message_length", len(req.Message),
	)

	res, err := h.runtime.RunTurn(r.Context(), TurnRequest{
		SessionID: sessionID,
		UserID:    userID,
		Message:   req.Message,
	})
	if res.SessionID != "" {
		w.Header().Set(identity.SessionHeaderName, res.SessionID)
	}
	if err != nil {
		status, msg := turnErrorStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("Trip chat turn failed", "user_id", userID, "session_id", res.SessionID, "error", err)
		}
		writeJSON(w, status, ChatResponse{TurnResult: res, Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{TurnResult: res})
}

// turnErrorStatus maps a RunTurn error to an HTTP status and client message.
func turnErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return http.StatusBadRequest, "message is required"
	case errors.Is(err, session.ErrTurnInProgress):
		return http.StatusConflict, "turn already in progress"
	case errors.Is(err, ErrSessionOwner):
		return http.StatusForbidden, "session belongs to another user"
	default:
		return http.StatusInternalServerError, "turn failed"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
