package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if prev, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { _ = os.Setenv(k, prev) })
		}
		_ = os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t, "PORT", "DB_PATH", "TRIP_PLANNER_SCENARIO", "HOOK_TIMEOUT", "LOG_LEVEL",
		"SEARCH_MAX_RESULTS", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW", "MAX_LIVE_SESSIONS", "TURN_TIMEOUT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("unexpected port %q", cfg.Port)
	}
	if cfg.ScenarioPath != "scenarios/empty_default.json" {
		t.Fatalf("unexpected scenario path %q", cfg.ScenarioPath)
	}
	if cfg.HookTimeout != 5*time.Second {
		t.Fatalf("unexpected hook timeout %v", cfg.HookTimeout)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected log level %v", cfg.LogLevel)
	}
	if cfg.YouTube.SearchMaxResults != 5 {
		t.Fatalf("unexpected max results %d", cfg.YouTube.SearchMaxResults)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TRIP_PLANNER_SCENARIO", "scenarios/tokyo_demo.yaml")
	t.Setenv("HOOK_TIMEOUT", "750ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SEARCH_MAX_RESULTS", "8")
	t.Setenv("RATE_LIMIT_REQUESTS", "10")
	t.Setenv("RATE_LIMIT_WINDOW", "not-a-duration")
	t.Setenv("MAX_LIVE_SESSIONS", "16")
	t.Setenv("TURN_TIMEOUT", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" || cfg.ScenarioPath != "scenarios/tokyo_demo.yaml" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.HookTimeout != 750*time.Millisecond {
		t.Fatalf("unexpected hook timeout %v", cfg.HookTimeout)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected log level %v", cfg.LogLevel)
	}
	if cfg.YouTube.SearchMaxResults != 8 {
		t.Fatalf("unexpected max results %d", cfg.YouTube.SearchMaxResults)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Fatalf("bad duration should fall back, got %v", cfg.RateLimit.Window)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DB_PATH", "trip.db")
	t.Setenv("HOOK_TIMEOUT", "5s")
	t.Setenv("TURN_TIMEOUT", "1m")
	t.Setenv("MAX_LIVE_SESSIONS", "4")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("SEARCH_MAX_RESULTS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for SEARCH_MAX_RESULTS=0")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Port:            "8080",
		DBPath:          "trip.db",
		HookTimeout:     time.Second,
		TurnTimeout:     time.Minute,
		MaxLiveSessions: 1,
		YouTube:         YouTubeConfig{SearchMaxResults: 5},
		RateLimit:       RateLimitConfig{Requests: 1, Window: time.Second},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero hook timeout", func(c *Config) { c.HookTimeout = 0 }},
		{"negative turn timeout", func(c *Config) { c.TurnTimeout = -time.Second }},
		{"no live sessions", func(c *Config) { c.MaxLiveSessions = 0 }},
		{"too many results", func(c *Config) { c.YouTube.SearchMaxResults = 51 }},
		{"zero rate", func(c *Config) { c.RateLimit.Requests = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"https://trips.example.com", false},
	}
	for _, tt := range tests {
		if got := (&Config{FrontendURL: tt.url}).IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
