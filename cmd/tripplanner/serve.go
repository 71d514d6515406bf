package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/trip-planner/internal/agent"
	"github.com/ashureev/trip-planner/internal/api"
	"github.com/ashureev/trip-planner/internal/config"
	"github.com/ashureev/trip-planner/internal/health"
	"github.com/ashureev/trip-planner/internal/identity"
	"github.com/ashureev/trip-planner/internal/memory"
	"github.com/ashureev/trip-planner/internal/middleware"
	"github.com/ashureev/trip-planner/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthProbeInterval = 15 * time.Second
)

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return serve(cmd.Context(), cfg, newLogger(cfg.LogLevel))
		},
	}
}

func serve(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "scenario", cfg.ScenarioPath)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	limiter := agent.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	limiter.StartSweeper(ctx)
	memory.StartRetentionWorker(ctx, a.repo, cfg.MemoryRetention)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     newRouter(a, limiter),
		ReadTimeout: 30 * time.Second,
		// Turns can run for minutes while videos are transcribed.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcHealth *health.Server
	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return fmt.Errorf("listen grpc health: %w", err)
		}
		grpcHealth = health.NewServer(a.repo, healthProbeInterval, logger)
		go func() {
			logger.Info("gRPC health listening", "addr", lis.Addr().String())
			if err := grpcHealth.Serve(ctx, lis); err != nil {
				errCh <- fmt.Errorf("grpc health: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("Server failed", "error", runErr)
	}
	stop()

	logger.Info("Shutting down gracefully...")
	if grpcHealth != nil {
		grpcHealth.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server stopped successfully")
	return runErr
}

func newRouter(a *app, limiter *agent.RateLimiter) http.Handler {
	cfg := a.cfg
	origins := []string{"*"}
	if !cfg.IsDevelopment() && cfg.FrontendURL != "" {
		origins = []string{cfg.FrontendURL}
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))
	r.Use(middleware.CORS(origins))

	api.NewHealthHandler(a.repo, 2*time.Second).RegisterHealth(r)
	r.Handle("/metrics", a.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(a.repo, cfg.IsDevelopment()))

		base := api.NewHandler(a.repo, a.runtime, a.snapshots, a.memory)
		api.NewTripHandler(base).RegisterRoutes(r)

		agent.NewHandler(agent.HandlerConfig{
			Runtime:       a.runtime,
			RateLimiter:   limiter,
			AllowedOrigin: cfg.FrontendURL,
			IsDev:         cfg.IsDevelopment(),
		}).RegisterRoutes(r)
	})

	r.Handle("/*", web.Handler())
	return r
}
