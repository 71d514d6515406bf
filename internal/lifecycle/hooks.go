// Package lifecycle holds the pre-turn and post-turn hooks that seed,
// restore and snapshot session state around every agent turn.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/trip-planner/internal/metrics"
	"github.com/ashureev/trip-planner/internal/scenario"
	"github.com/ashureev/trip-planner/internal/session"
	"github.com/ashureev/trip-planner/internal/state"
)

// DefaultUserID keys snapshots for sessions that carry no user id.
const DefaultUserID = "default_user"

// ErrMemoryForward is returned by Persist when the snapshot was saved but
// the transcript could not be handed to the memory service.
var ErrMemoryForward = errors.New("forward session to memory")

// MemoryService receives finished session transcripts.
type MemoryService interface {
	AddSessionToMemory(ctx context.Context, s *session.Session) error
}

// CallbackContext is what a hook sees of the turn it runs in.
type CallbackContext struct {
	Session *session.Session
}

// State returns the live session state.
func (cc CallbackContext) State() *state.State {
	return cc.Session.State
}

// UserID returns the snapshot key for the session.
func (cc CallbackContext) UserID() string {
	if cc.Session != nil && cc.Session.UserID != "" {
		return cc.Session.UserID
	}
	return DefaultUserID
}

// Hydrator restores a previously saved snapshot into a live session that
// has no destination yet.
type Hydrator struct {
	store   *state.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHydrator creates a hydrator reading from store.
func NewHydrator(store *state.Store, m *metrics.Metrics, logger *slog.Logger) *Hydrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hydrator{store: store, logger: logger, metrics: m}
}

// Hydrate overwrites the live state with the user's snapshot and raises
// _just_restored. It does nothing when the live state already has a
// destination or the snapshot has none.
func (h *Hydrator) Hydrate(ctx context.Context, cc CallbackContext) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}

	live := cc.State()
	if live.String(state.KeyDestination) != "" {
		return nil
	}

	userID := cc.UserID()
	snap := h.store.Get(userID)
	if snap.String(state.KeyDestination) == "" {
		return nil
	}

	live.Update(snap)
	if err := live.Set(state.KeyJustRestored, true); err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}

	h.metrics.Restored()
	h.logger.Info("Restored session state from snapshot",
		"user_id", userID,
		"session_id", cc.Session.ID,
		"destination", live.String(state.KeyDestination),
		"keys", snap.Len())
	return nil
}

// Persister snapshots live state after every turn and forwards the session
// transcript to memory.
type Persister struct {
	store  *state.Store
	memory MemoryService
	logger *slog.Logger
}

// NewPersister creates a persister. memory may be nil.
func NewPersister(store *state.Store, memory MemoryService, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{store: store, memory: memory, logger: logger}
}

// Persist clears _just_restored, saves the snapshot and forwards the
// transcript. A memory failure is returned wrapped in ErrMemoryForward
// after the snapshot has been saved.
func (p *Persister) Persist(ctx context.Context, cc CallbackContext) error {
	live := cc.State()
	live.Delete(state.KeyJustRestored)

	userID := cc.UserID()
	p.store.Save(userID, live)
	p.logger.Debug("Saved session snapshot", "user_id", userID, "session_id", cc.Session.ID, "keys", live.Len())

	if p.memory == nil {
		return nil
	}
	if err := p.memory.AddSessionToMemory(ctx, cc.Session); err != nil {
		return fmt.Errorf("%w: %v", ErrMemoryForward, err)
	}
	return nil
}

// SeedResult reports what the scenario loader did for a turn. Err is set
// when seeding failed; the turn proceeds regardless.
type SeedResult struct {
	Outcome scenario.Outcome
	Err     error
}

// PreTurn runs the scenario loader and then the hydrator.
type PreTurn struct {
	loader   *scenario.Loader
	hydrator *Hydrator
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewPreTurn composes the pre-turn chain.
func NewPreTurn(loader *scenario.Loader, hydrator *Hydrator, m *metrics.Metrics, logger *slog.Logger) *PreTurn {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreTurn{loader: loader, hydrator: hydrator, logger: logger, metrics: m}
}

// Run seeds the state and then hydrates it. Seeding errors are logged and
// reported in the SeedResult only; hydration errors are returned.
func (p *PreTurn) Run(ctx context.Context, cc CallbackContext) (SeedResult, error) {
	var res SeedResult
	if p.loader != nil {
		res.Outcome, res.Err = p.loader.Load(cc.State())
		p.metrics.ScenarioSeed(string(res.Outcome))
		if res.Err != nil {
			p.logger.Error("Scenario seeding failed, continuing",
				"user_id", cc.UserID(),
				"session_id", cc.Session.ID,
				"path", p.loader.Path(),
				"error", res.Err)
		}
	}

	if err := p.hydrator.Hydrate(ctx, cc); err != nil {
		return res, err
	}
	return res, nil
}
