// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"deskagent/internal/domain"
)

// Repository defines the interface for persisting users, session
// transcripts and per-user memories.
type Repository interface {
	// GetUser retrieves a user by ID. Returns (nil, nil) when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record. Idempotent by ID.
	UpsertUser(ctx context.Context, user *domain.User) error

	// AppendSessionEvent appends one event to a session's log, creating
	// the session on first use. Prior events are never reordered or dropped.
	AppendSessionEvent(ctx context.Context, sessionID, userID string, event domain.Event) error

	// GetSessionEvents returns a session's events in insertion order.
	// Returns an empty slice for an unknown session.
	GetSessionEvents(ctx context.Context, sessionID string) ([]domain.Event, error)

	// AddMemory appends a memory entry for a user.
	AddMemory(ctx context.Context, userID, category, content string) error

	// RetrieveMemories returns at most limit entries for the user,
	// most-recent-first. When keyword is non-empty only entries whose
	// content contains it (case-insensitive) are returned.
	RetrieveMemories(ctx context.Context, userID, keyword string, limit int) ([]domain.MemoryEntry, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
