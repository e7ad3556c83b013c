package repo

import (
	"context"
	"time"
)

// Mute is one sender's mute record, process-wide (not per conversation).
type Mute struct {
	Active     bool      `json:"active"`
	ExpiresAt  time.Time `json:"expires_at"`
	Violations int       `json:"violations"`
}

// MuteRepo is the durable mute table consulted by the profanity pipeline.
type MuteRepo interface {
	Get(senderID string) (Mute, bool)
	Put(senderID string, m Mute) error
	Delete(senderID string) error
	Close() error
}

// ModAction is one enforcement verdict recorded for audit.
type ModAction struct {
	ID       int64
	Pipeline string
	ChatID   string
	SenderID string
	Action   string // delete, warn, mute, remove
	Reason   string
	At       time.Time
}

// ModLogRepo records moderation verdicts durably.
type ModLogRepo interface {
	Record(ctx context.Context, a *ModAction) error
	Recent(ctx context.Context, limit int) ([]*ModAction, error)
	Close() error
}
