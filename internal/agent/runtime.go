package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/trip-planner/internal/domain"
	"github.com/ashureev/trip-planner/internal/lifecycle"
	"github.com/ashureev/trip-planner/internal/metrics"
	"github.com/ashureev/trip-planner/internal/session"
	"github.com/ashureev/trip-planner/internal/state"
)

const defaultHookTimeout = 5 * time.Second

// ErrSessionOwner is returned when a session id is used by a user other
// than the one that created it.
var ErrSessionOwner = errors.New("session belongs to another user")

// ErrEmptyMessage is returned for blank user messages.
var ErrEmptyMessage = errors.New("message is required")

// Runtime runs turns: pre-turn hooks, the processor, post-turn hooks.
type Runtime struct {
	sessions  *session.Registry
	preTurn   *lifecycle.PreTurn
	persister *lifecycle.Persister
	processor Processor
	metrics   *metrics.Metrics
	logger    *slog.Logger

	hookTimeout time.Duration
	turnTimeout time.Duration
	now         func() time.Time
}

// RuntimeConfig wires a Runtime.
type RuntimeConfig struct {
	Sessions  *session.Registry
	PreTurn   *lifecycle.PreTurn
	Persister *lifecycle.Persister
	Processor Processor
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// HookTimeout bounds each hook chain.
	HookTimeout time.Duration
	// TurnTimeout bounds the processor; zero means no bound beyond ctx.
	TurnTimeout time.Duration
}

// NewRuntime creates a runtime.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HookTimeout <= 0 {
		cfg.HookTimeout = defaultHookTimeout
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewRegistry(0, 0)
	}
	return &Runtime{
		sessions:    cfg.Sessions,
		preTurn:     cfg.PreTurn,
		persister:   cfg.Persister,
		processor:   cfg.Processor,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		hookTimeout: cfg.HookTimeout,
		turnTimeout: cfg.TurnTimeout,
		now:         time.Now,
	}
}

// Sessions returns the live session registry.
func (rt *Runtime) Sessions() *session.Registry {
	return rt.sessions
}

// RunTurn processes one user message. The post-turn hook runs whenever the
// pre-turn hooks succeeded, including when the processor failed.
func (rt *Runtime) RunTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	start := time.Now()
	if req.Message == "" {
		return TurnResult{SessionID: req.SessionID}, ErrEmptyMessage
	}

	sess, created := rt.sessions.GetOrCreate(req.SessionID, req.UserID)
	res := TurnResult{SessionID: sess.ID}
	if sess.UserID != req.UserID {
		return res, ErrSessionOwner
	}
	if err := sess.TryBeginTurn(); err != nil {
		return res, err
	}
	defer sess.EndTurn()

	log := rt.logger.With("session_id", sess.ID, "user_id", req.UserID)
	if created {
		log.Debug("Created live session")
	}

	sess.AppendEvent(domain.RoleUser, req.Message, rt.now())
	cc := lifecycle.CallbackContext{Session: sess}

	seed, err := rt.runPreTurn(ctx, cc)
	res.Seed = seed.Outcome
	if err != nil {
		res.Stage = sess.State.Stage()
		rt.metrics.Turn(string(res.Stage), "hook_error", time.Since(start))
		return res, fmt.Errorf("pre-turn hooks: %w", err)
	}
	res.Restored = sess.State.Bool(state.KeyJustRestored)

	reply, procErr := rt.respond(ctx, sess, req.Message)
	if procErr == nil {
		res.Reply = reply
		sess.AppendEvent(domain.RoleAssistant, reply, rt.now())
	}

	persistErr := rt.runPostTurn(ctx, cc, log)
	res.Stage = sess.State.Stage()

	status := "ok"
	switch {
	case procErr != nil:
		status = "agent_error"
	case persistErr != nil:
		status = "hook_error"
	}
	rt.metrics.Turn(string(res.Stage), status, time.Since(start))

	if procErr != nil {
		log.Error("Turn failed", "error", procErr)
		return res, fmt.Errorf("run agent: %w", procErr)
	}
	if persistErr != nil {
		return res, fmt.Errorf("post-turn hooks: %w", persistErr)
	}

	if seed.Err != nil {
		log = log.With("seed_error", seed.Err)
	}
	log.Info("Turn completed", "stage", res.Stage, "restored", res.Restored, "seed", res.Seed, "duration", time.Since(start))
	return res, nil
}

func (rt *Runtime) runPreTurn(ctx context.Context, cc lifecycle.CallbackContext) (lifecycle.SeedResult, error) {
	if rt.preTurn == nil {
		return lifecycle.SeedResult{}, nil
	}
	hookCtx, cancel := context.WithTimeout(ctx, rt.hookTimeout)
	defer cancel()
	return rt.preTurn.Run(hookCtx, cc)
}

func (rt *Runtime) respond(ctx context.Context, sess *session.Session, message string) (string, error) {
	if rt.processor == nil {
		return "", errors.New("no processor configured")
	}
	if rt.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.turnTimeout)
		defer cancel()
	}
	return rt.processor.Respond(ctx, sess, message)
}

// runPostTurn snapshots the state even if the request context is already
// gone. A memory forward failure is logged and counted but not returned.
func (rt *Runtime) runPostTurn(ctx context.Context, cc lifecycle.CallbackContext, log *slog.Logger) error {
	if rt.persister == nil {
		return nil
	}
	hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rt.hookTimeout)
	defer cancel()

	err := rt.persister.Persist(hookCtx, cc)
	if errors.Is(err, lifecycle.ErrMemoryForward) {
		rt.metrics.MemoryForwardFailed()
		log.Warn("Failed to forward session to memory", "error", err)
		return nil
	}
	return err
}

// State returns a copy of the live state of a session owned by userID.
// The turn lock is held while copying, so a busy session reports
// session.ErrTurnInProgress.
func (rt *Runtime) State(sessionID, userID string) (*state.State, error) {
	sess, ok := rt.sessions.Get(sessionID)
	if !ok {
		return state.New(), nil
	}
	if sess.UserID != userID {
		return nil, ErrSessionOwner
	}
	if err := sess.TryBeginTurn(); err != nil {
		return nil, err
	}
	defer sess.EndTurn()
	return sess.State.Clone(), nil
}

// Reset drops the live session so the next turn starts empty.
func (rt *Runtime) Reset(sessionID, userID string) error {
	sess, ok := rt.sessions.Get(sessionID)
	if !ok {
		return nil
	}
	if sess.UserID != userID {
		return ErrSessionOwner
	}
	if err := sess.TryBeginTurn(); err != nil {
		return err
	}
	defer sess.EndTurn()
	rt.sessions.Delete(sessionID)
	return nil
}
