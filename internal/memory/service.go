// Package memory stores finished session transcripts and searches them.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/trip-planner/internal/domain"
	"github.com/ashureev/trip-planner/internal/session"
	"github.com/ashureev/trip-planner/internal/store"
	"github.com/samber/lo"
)

const defaultSearchLimit = 20

// Service is the SQLite-backed memory service.
type Service struct {
	repo   store.Repository
	logger *slog.Logger
}

// NewService creates a memory service over repo.
func NewService(repo store.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// AddSessionToMemory upserts the transcript of s. Sessions with no
// messages are skipped.
func (m *Service) AddSessionToMemory(ctx context.Context, s *session.Session) error {
	transcript := s.Transcript()
	if len(transcript) == 0 {
		return nil
	}

	data, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	ms := &domain.MemorySession{
		SessionID:    s.ID,
		UserID:       s.UserID,
		MessagesJSON: string(data),
		MessageCount: len(transcript),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    updatedAt,
	}
	if err := m.repo.UpsertMemorySession(ctx, ms); err != nil {
		return fmt.Errorf("store transcript: %w", err)
	}

	m.logger.Debug("Session added to memory", "session_id", s.ID, "user_id", s.UserID, "messages", len(transcript))
	return nil
}

// SearchMemory returns the messages of userID's past sessions whose content
// contains query, case-insensitively, newest session first. An empty query
// returns nothing.
func (m *Service) SearchMemory(ctx context.Context, userID, query string, limit int) ([]domain.MemoryHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.MemoryHit{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	sessions, err := m.repo.ListMemorySessions(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("list memory sessions: %w", err)
	}

	needle := strings.ToLower(query)
	hits := []domain.MemoryHit{}
	for _, ms := range sessions {
		var msgs []domain.Message
		if err := json.Unmarshal([]byte(ms.MessagesJSON), &msgs); err != nil {
			m.logger.Warn("Skipping unreadable transcript", "session_id", ms.SessionID, "error", err)
			continue
		}

		matched := lo.Filter(msgs, func(msg domain.Message, _ int) bool {
			return strings.Contains(strings.ToLower(msg.Content), needle)
		})
		for _, msg := range matched {
			hits = append(hits, domain.MemoryHit{
				SessionID: ms.SessionID,
				Role:      msg.Role,
				Content:   msg.Content,
				Timestamp: msg.Timestamp,
			})
			if len(hits) == limit {
				return hits, nil
			}
		}
	}
	return hits, nil
}

// Forget removes every transcript of userID.
func (m *Service) Forget(ctx context.Context, userID string) error {
	n, err := m.repo.DeleteMemorySessions(ctx, userID)
	if err != nil {
		return fmt.Errorf("forget user memory: %w", err)
	}
	m.logger.Info("Memory cleared", "user_id", userID, "sessions", n)
	return nil
}
