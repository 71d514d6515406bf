// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	GRPCPort    string
	FrontendURL string
	DBPath      string
	LogLevel    slog.Level

	ScenarioPath string

	HookTimeout     time.Duration
	TurnTimeout     time.Duration
	SessionIdleTTL  time.Duration
	MaxLiveSessions int
	MemoryRetention time.Duration

	YouTube   YouTubeConfig
	LLM       LLMConfig
	RateLimit RateLimitConfig
}

// YouTubeConfig configures transcript fetching and video search.
type YouTubeConfig struct {
	ProxyURL           string
	YtDlpPath          string
	APIKey             string
	SearchMaxResults   int
	TranscriptCacheTTL time.Duration
}

// LLMConfig configures the chat-completion model.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// RateLimitConfig bounds chat requests per user.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		GRPCPort:     getEnv("GRPC_PORT", ""),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		DBPath:       getEnv("DB_PATH", "./data/trip_planner.db"),
		LogLevel:     parseLevel(getEnv("LOG_LEVEL", "INFO")),
		ScenarioPath: getEnv("TRIP_PLANNER_SCENARIO", "scenarios/empty_default.json"),

		HookTimeout:     getEnvDuration("HOOK_TIMEOUT", 5*time.Second),
		TurnTimeout:     getEnvDuration("TURN_TIMEOUT", 3*time.Minute),
		SessionIdleTTL:  getEnvDuration("SESSION_IDLE_TTL", 2*time.Hour),
		MaxLiveSessions: getEnvInt("MAX_LIVE_SESSIONS", 1024),
		MemoryRetention: getEnvDuration("MEMORY_RETENTION", 30*24*time.Hour),

		YouTube: YouTubeConfig{
			ProxyURL:           getEnv("YT_PROXY_URL", ""),
			YtDlpPath:          getEnv("YTDLP_PATH", "yt-dlp"),
			APIKey:             getEnv("YOUTUBE_API_KEY", ""),
			SearchMaxResults:   getEnvInt("SEARCH_MAX_RESULTS", 5),
			TranscriptCacheTTL: getEnvDuration("TRANSCRIPT_CACHE_TTL", 6*time.Hour),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.HookTimeout <= 0 {
		return fmt.Errorf("HOOK_TIMEOUT must be > 0")
	}
	if c.TurnTimeout <= 0 {
		return fmt.Errorf("TURN_TIMEOUT must be > 0")
	}
	if c.MaxLiveSessions <= 0 {
		return fmt.Errorf("MAX_LIVE_SESSIONS must be > 0")
	}
	if c.YouTube.SearchMaxResults <= 0 || c.YouTube.SearchMaxResults > 50 {
		return fmt.Errorf("SEARCH_MAX_RESULTS must be between 1 and 50")
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
