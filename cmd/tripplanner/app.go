package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/trip-planner/internal/agent"
	"github.com/ashureev/trip-planner/internal/config"
	"github.com/ashureev/trip-planner/internal/lifecycle"
	"github.com/ashureev/trip-planner/internal/llm"
	"github.com/ashureev/trip-planner/internal/memory"
	"github.com/ashureev/trip-planner/internal/metrics"
	"github.com/ashureev/trip-planner/internal/scenario"
	"github.com/ashureev/trip-planner/internal/session"
	"github.com/ashureev/trip-planner/internal/state"
	"github.com/ashureev/trip-planner/internal/store"
	"github.com/ashureev/trip-planner/internal/tools"
	"github.com/ashureev/trip-planner/internal/youtube"
)

// app holds the process-wide components shared by serve and chat.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	repo      *store.SQLiteStore
	metrics   *metrics.Metrics
	snapshots *state.Store
	memory    *memory.Service
	runtime   *agent.Runtime
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	if err := repo.Ping(context.Background()); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}
	logger.Info("Database connected", "path", cfg.DBPath)

	m := metrics.New()
	snapshots := state.NewStore()
	mem := memory.NewService(repo, logger)

	tb := tools.New(tools.Config{
		Transcripts: youtube.NewTranscriptFetcher(youtube.TranscriptConfig{
			Binary:   cfg.YouTube.YtDlpPath,
			ProxyURL: cfg.YouTube.ProxyURL,
			CacheTTL: cfg.YouTube.TranscriptCacheTTL,
		}, logger),
		Search: youtube.NewSearcher(cfg.YouTube.APIKey, "", cfg.YouTube.TranscriptCacheTTL, logger),
		LLM: llm.New(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		}),
		Metrics:          m,
		Logger:           logger,
		SearchMaxResults: cfg.YouTube.SearchMaxResults,
	})
	if cfg.YouTube.APIKey == "" {
		logger.Warn("YOUTUBE_API_KEY not set, video search will report errors; paste links instead")
	}
	if cfg.LLM.APIKey == "" {
		logger.Info("OPENAI_API_KEY not set, using rule-based compaction and drafting")
	}

	loader := scenario.NewLoader(cfg.ScenarioPath, logger)
	hydrator := lifecycle.NewHydrator(snapshots, m, logger)

	rt := agent.NewRuntime(agent.RuntimeConfig{
		Sessions:    session.NewRegistry(cfg.SessionIdleTTL, cfg.MaxLiveSessions),
		PreTurn:     lifecycle.NewPreTurn(loader, hydrator, m, logger),
		Persister:   lifecycle.NewPersister(snapshots, mem, logger),
		Processor:   agent.NewPlanner(tb, logger),
		Metrics:     m,
		Logger:      logger,
		HookTimeout: cfg.HookTimeout,
		TurnTimeout: cfg.TurnTimeout,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		repo:      repo,
		metrics:   m,
		snapshots: snapshots,
		memory:    mem,
		runtime:   rt,
	}, nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		a.logger.Error("Failed to close repository", "error", err)
	}
}
