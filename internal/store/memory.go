package store

import (
	"context"
	"sync"
	"time"

	"github.com/frasergibbs/linear-agent-v0/internal/domain"
)

// MemoryStore implements Repository with an in-process map. Used in
// tests and for local development without a database file.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

// CreateSession persists a new session, failing if the ID is taken.
func (m *MemoryStore) CreateSession(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.TrackerSessionID]; ok {
		return ErrSessionExists
	}

	now := time.Now()
	stored := *session
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.sessions[session.TrackerSessionID] = &stored
	return nil
}

// GetSession returns a copy of the stored session, or (nil, nil) when absent.
func (m *MemoryStore) GetSession(_ context.Context, trackerSessionID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[trackerSessionID]
	if !ok {
		return nil, nil
	}
	out := *stored
	return &out, nil
}

// UpdateSession merges non-nil fields. Absent IDs are a no-op.
func (m *MemoryStore) UpdateSession(_ context.Context, trackerSessionID string, upd SessionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[trackerSessionID]
	if !ok {
		return nil
	}

	if upd.GenerationChatID != nil {
		stored.GenerationChatID = *upd.GenerationChatID
	}
	if upd.ProjectID != nil {
		stored.ProjectID = *upd.ProjectID
	}
	if upd.ChatURL != nil {
		stored.ChatURL = *upd.ChatURL
	}
	if upd.DeploymentURL != nil {
		stored.DeploymentURL = *upd.DeploymentURL
	}
	if upd.SourceRepoURL != nil {
		stored.SourceRepoURL = *upd.SourceRepoURL
	}
	if upd.LatestVersionID != nil {
		stored.LatestVersionID = *upd.LatestVersionID
	}
	stored.UpdatedAt = time.Now()
	return nil
}

// DeleteSession removes a session.
func (m *MemoryStore) DeleteSession(_ context.Context, trackerSessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, trackerSessionID)
	return nil
}

// ListSessions returns copies of all stored sessions.
func (m *MemoryStore) ListSessions(_ context.Context) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]*domain.Session, 0, len(m.sessions))
	for _, stored := range m.sessions {
		out := *stored
		sessions = append(sessions, &out)
	}
	return sessions, nil
}

// CleanupExpiredSessions removes sessions idle longer than ttl.
func (m *MemoryStore) CleanupExpiredSessions(_ context.Context, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	threshold := time.Now().Add(-ttl)
	var removed int64
	for id, stored := range m.sessions {
		if stored.UpdatedAt.Before(threshold) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
