package agent

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/trip-planner/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// HandleWebSocket handles GET /ws/chat. Every text frame from the client is
// a ChatRequest and gets exactly one ChatResponse back. The connection is
// bound to a single session; the first reply carries its id.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.RemoteIP(r))

	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.chatLoop(r.Context(), ws, userID, sessionID)
	slog.Info("Chat WebSocket ended", "user_id", userID)
}

func (h *Handler) chatLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string) {
	for {
		var req ChatRequest
		if err := wsjson.Read(ctx, ws, &req); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var resp ChatResponse
		if !h.rateLimiter.Allow(userID) {
			resp = ChatResponse{TurnResult: TurnResult{SessionID: sessionID}, Error: "rate limit exceeded"}
		} else {
			res, err := h.runtime.RunTurn(ctx, TurnRequest{SessionID: sessionID, UserID: userID, Message: req.Message})
			resp = ChatResponse{TurnResult: res}
			if err != nil {
				_, resp.Error = turnErrorStatus(err)
				slog.Warn("WebSocket turn failed", "user_id", userID, "session_id", res.SessionID, "error", err)
			}
			if res.SessionID != "" {
				sessionID = res.SessionID
			}
		}

		if err := wsjson.Write(ctx, ws, resp); err != nil {
			slog.Debug("WebSocket write error", "error", err, "user_id", userID)
			return
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
