package agent

import (
	"context"

	"github.com/ashureev/trip-planner/internal/session"
)

// Processor produces the reply to one user message. It runs while the
// caller holds the session's turn lock and may mutate the session state.
type Processor interface {
	Respond(ctx context.Context, s *session.Session, message string) (string, error)
}

// Ensure Planner implements Processor.
var _ Processor = (*Planner)(nil)
