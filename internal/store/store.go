// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/frasergibbs/linear-agent-v0/internal/domain"
)

// ErrSessionExists is returned by CreateSession when a session with
// the same tracker session ID is already persisted.
var ErrSessionExists = errors.New("session already exists")

// SessionUpdate is a partial update applied to an existing session.
// Nil fields are left unchanged.
type SessionUpdate struct {
	GenerationChatID *string
	ProjectID        *string
	ChatURL          *string
	DeploymentURL    *string
	SourceRepoURL    *string
	LatestVersionID  *string
}

// Repository defines the interface for persisting agent sessions.
type Repository interface {
	// CreateSession persists a new session. It is atomic insert-if-absent:
	// a second create for the same tracker session ID returns
	// ErrSessionExists without modifying the stored row.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by tracker session ID.
	// Returns (nil, nil) when absent.
	GetSession(ctx context.Context, trackerSessionID string) (*domain.Session, error)

	// UpdateSession merges non-nil fields into an existing session and
	// refreshes updated_at. Updating an absent ID is a no-op, not an
	// error; callers that need existence must GetSession first.
	UpdateSession(ctx context.Context, trackerSessionID string, upd SessionUpdate) error

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, trackerSessionID string) error

	// ListSessions returns all sessions, for diagnostics only.
	ListSessions(ctx context.Context) ([]*domain.Session, error)

	// CleanupExpiredSessions removes sessions idle longer than ttl.
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies storage connectivity.
	Ping(ctx context.Context) error

	// Close closes the underlying storage.
	Close() error
}

// String returns a pointer to s, for building SessionUpdate values.
func String(s string) *string {
	return &s
}
