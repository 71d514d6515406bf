// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/trip-planner/internal/domain"
)

// Repository persists anonymous users and the conversation transcripts
// handed to the memory service.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns nil when missing.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// UpsertMemorySession stores the transcript of a session.
	UpsertMemorySession(ctx context.Context, ms *domain.MemorySession) error

	// GetMemorySession retrieves one transcript. Returns nil when missing.
	GetMemorySession(ctx context.Context, sessionID string) (*domain.MemorySession, error)

	// ListMemorySessions returns a user's transcripts, newest first.
	ListMemorySessions(ctx context.Context, userID string, limit int) ([]*domain.MemorySession, error)

	// DeleteMemorySessions removes every transcript of a user.
	DeleteMemorySessions(ctx context.Context, userID string) (int64, error)

	// CleanupExpiredMemory removes transcripts not updated within ttl.
	CleanupExpiredMemory(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
