package domain

import (
	"time"
)

// Message roles used in session transcripts.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a session transcript.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"ts"`
}

// MemorySession is a conversation transcript persisted by the memory service.
type MemorySession struct {
	SessionID    string
	UserID       string
	MessagesJSON string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MemoryHit is a single message matched by a memory search.
type MemoryHit struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"ts"`
}
