package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/trip-planner/internal/domain"
	"github.com/ashureev/trip-planner/internal/shared"
	_ "modernc.org/sqlite"
)

var _ Repository = (*SQLiteStore)(nil)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	memoryMu sync.Mutex // serializes transcript writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memory_sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		messages_json TEXT NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_sessions_user ON memory_sessions(user_id, updated_at);
	CREATE INDEX IF NOT EXISTS idx_memory_sessions_updated ON memory_sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	var user domain.User
	var lastSeen, createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			last_seen_at = excluded.last_seen_at,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username, user.LastSeenAt.Unix(),
		user.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}

// UpsertMemorySession stores the transcript of a session, retrying on lock
// contention.
func (s *SQLiteStore) UpsertMemorySession(ctx context.Context, ms *domain.MemorySession) error {
	query := `
		INSERT INTO memory_sessions (
			session_id, user_id, messages_json, message_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			user_id = excluded.user_id,
			messages_json = excluded.messages_json,
			message_count = excluded.message_count,
			updated_at = excluded.updated_at`

	updatedAt := ms.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	return shared.RetryOnConflict(ctx, "upsert memory session", shared.DefaultRetryPolicy, func(ctx context.Context) error {
		s.memoryMu.Lock()
		defer s.memoryMu.Unlock()

		_, err := s.db.ExecContext(ctx, query,
			ms.SessionID, ms.UserID, ms.MessagesJSON, ms.MessageCount,
			ms.CreatedAt.Unix(), updatedAt.Unix(),
		)
		return err
	})
}

// GetMemorySession retrieves one transcript.
func (s *SQLiteStore) GetMemorySession(ctx context.Context, sessionID string) (*domain.MemorySession, error) {
	query := `
		SELECT session_id, user_id, messages_json, message_count, created_at, updated_at
		FROM memory_sessions WHERE session_id = ?`

	ms, err := scanMemorySession(s.db.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan memory session: %w", err)
	}
	return ms, nil
}

// ListMemorySessions returns a user's transcripts, newest first. A
// non-positive limit returns all of them.
func (s *SQLiteStore) ListMemorySessions(ctx context.Context, userID string, limit int) ([]*domain.MemorySession, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT session_id, user_id, messages_json, message_count, created_at, updated_at
		FROM memory_sessions WHERE user_id = ?
		ORDER BY updated_at DESC, rowid DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query memory sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close memory session rows", "error", closeErr)
		}
	}()

	var out []*domain.MemorySession
	for rows.Next() {
		ms, err := scanMemorySession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory session row: %w", err)
		}
		out = append(out, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory sessions: %w", err)
	}
	return out, nil
}

// DeleteMemorySessions removes every transcript of a user.
func (s *SQLiteStore) DeleteMemorySessions(ctx context.Context, userID string) (int64, error) {
	var affected int64
	err := shared.RetryOnConflict(ctx, "delete memory sessions", shared.DefaultRetryPolicy, func(ctx context.Context) error {
		s.memoryMu.Lock()
		defer s.memoryMu.Unlock()

		result, err := s.db.ExecContext(ctx, `DELETE FROM memory_sessions WHERE user_id = ?`, userID)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	return affected, err
}

// CleanupExpiredMemory removes transcripts older than ttl.
func (s *SQLiteStore) CleanupExpiredMemory(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM memory_sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired memory: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemorySession(row rowScanner) (*domain.MemorySession, error) {
	var ms domain.MemorySession
	var createdAt, updatedAt int64
	if err := row.Scan(
		&ms.SessionID, &ms.UserID, &ms.MessagesJSON, &ms.MessageCount,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	ms.CreatedAt = time.Unix(createdAt, 0)
	ms.UpdatedAt = time.Unix(updatedAt, 0)
	return &ms, nil
}
