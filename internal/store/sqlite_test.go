package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/trip-planner/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "trip.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetUser(ctx, "anon_x")
	if err != nil || got != nil {
		t.Fatalf("expected no user, got %v, %v", got, err)
	}

	now := time.Unix(1_700_000_000, 0)
	if err := s.UpsertUser(ctx, &domain.User{UserID: "anon_x", Username: "anon-x", LastSeenAt: now, CreatedAt: now}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	later := now.Add(time.Hour)
	if err := s.UpdateLastSeen(ctx, "anon_x", later); err != nil {
		t.Fatalf("UpdateLastSeen failed: %v", err)
	}

	got, err = s.GetUser(ctx, "anon_x")
	if err != nil || got == nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if !got.LastSeenAt.Equal(later) || got.Username != "anon-x" {
		t.Fatalf("unexpected user %+v", got)
	}
}

func TestMemorySessionUpsertAndList(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	for i, id := range []string{"s1", "s2"} {
		ms := &domain.MemorySession{
			SessionID:    id,
			UserID:       "u1",
			MessagesJSON: `[]`,
			CreatedAt:    base,
			UpdatedAt:    base.Add(time.Duration(i) * time.Second),
		}
		if err := s.UpsertMemorySession(ctx, ms); err != nil {
			t.Fatalf("UpsertMemorySession(%s) failed: %v", id, err)
		}
	}

	// Overwrite s1 with a newer transcript.
	if err := s.UpsertMemorySession(ctx, &domain.MemorySession{
		SessionID:    "s1",
		UserID:       "u1",
		MessagesJSON: `[{"role":"user","content":"Tokyo"}]`,
		MessageCount: 1,
		CreatedAt:    base,
		UpdatedAt:    base.Add(10 * time.Second),
	}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	list, err := s.ListMemorySessions(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListMemorySessions failed: %v", err)
	}
	if len(list) != 2 || list[0].SessionID != "s1" || list[0].MessageCount != 1 {
		t.Fatalf("unexpected list %+v", list)
	}

	one, err := s.GetMemorySession(ctx, "s2")
	if err != nil || one == nil || one.UserID != "u1" {
		t.Fatalf("GetMemorySession: %+v, %v", one, err)
	}
	missing, err := s.GetMemorySession(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing session, got %+v, %v", missing, err)
	}
}

func TestDeleteAndCleanupMemory(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	for _, ms := range []*domain.MemorySession{
		{SessionID: "old", UserID: "u1", MessagesJSON: `[]`, CreatedAt: old, UpdatedAt: old},
		{SessionID: "new", UserID: "u1", MessagesJSON: `[]`, CreatedAt: time.Now(), UpdatedAt: time.Now()},
		{SessionID: "other", UserID: "u2", MessagesJSON: `[]`, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	} {
		if err := s.UpsertMemorySession(ctx, ms); err != nil {
			t.Fatalf("upsert %s failed: %v", ms.SessionID, err)
		}
	}

	n, err := s.CleanupExpiredMemory(ctx, 24*time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 expired row, got %d, %v", n, err)
	}

	n, err = s.DeleteMemorySessions(ctx, "u1")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 deleted row, got %d, %v", n, err)
	}
	list, err := s.ListMemorySessions(ctx, "u2", 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("other user's transcripts should remain: %+v, %v", list, err)
	}
}
