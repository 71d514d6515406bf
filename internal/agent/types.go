// Package agent runs conversation turns against the trip planning pipeline.
package agent

import (
	"github.com/ashureev/trip-planner/internal/scenario"
	"github.com/ashureev/trip-planner/internal/state"
)

// TurnRequest is one user message addressed to a session.
type TurnRequest struct {
	SessionID string
	UserID    string
	Message   string
}

// TurnResult is what a completed turn reports back.
type TurnResult struct {
	SessionID string      `json:"session_id"`
	Reply     string      `json:"reply"`
	Stage     state.Stage `json:"stage"`
	Restored  bool        `json:"restored"`
	// Seed is what the scenario loader did this turn. A failed seed does
	// not fail the turn.
	Seed scenario.Outcome `json:"seed,omitempty"`
}

// ChatRequest is the body of POST /api/trip/chat and of every WebSocket
// frame sent by the client.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse wraps a turn result for clients.
type ChatResponse struct {
	TurnResult
	Error string `json:"error,omitempty"`
}
