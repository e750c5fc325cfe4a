package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/frasergibbs/linear-agent-v0/internal/domain"
	"github.com/frasergibbs/linear-agent-v0/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
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
	CREATE TABLE IF NOT EXISTS sessions (
		tracker_session_id TEXT PRIMARY KEY,
		generation_chat_id TEXT NOT NULL,
		project_id TEXT,
		chat_url TEXT,
		deployment_url TEXT,
		source_repo_url TEXT,
		latest_version_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
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

// CreateSession persists a new session. The insert is atomic
// insert-if-absent: ON CONFLICT DO NOTHING plus a rows-affected check
// detects a concurrent or repeated create for the same ID, so two
// racing "created" webhooks cannot both persist a row.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
	INSERT INTO sessions (
		tracker_session_id, generation_chat_id, project_id, chat_url,
		deployment_url, source_repo_url, latest_version_id, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(tracker_session_id) DO NOTHING`

	now := time.Now()
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	result, err := s.db.ExecContext(ctx, query,
		session.TrackerSessionID, session.GenerationChatID,
		nullable(session.ProjectID), nullable(session.ChatURL),
		nullable(session.DeploymentURL), nullable(session.SourceRepoURL),
		nullable(session.LatestVersionID),
		createdAt.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSessionExists
	}
	return nil
}

// GetSession retrieves a session by tracker session ID.
func (s *SQLiteStore) GetSession(ctx context.Context, trackerSessionID string) (*domain.Session, error) {
	query := `
		SELECT tracker_session_id, generation_chat_id, project_id, chat_url,
		       deployment_url, source_repo_url, latest_version_id, created_at, updated_at
		FROM sessions WHERE tracker_session_id = ?`

	row := s.db.QueryRowContext(ctx, query, trackerSessionID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return session, nil
}

// UpdateSession merges non-nil fields into an existing session.
// Zero rows affected is not an error.
func (s *SQLiteStore) UpdateSession(ctx context.Context, trackerSessionID string, upd SessionUpdate) error {
	query := `
	UPDATE sessions SET
		generation_chat_id = COALESCE(?, generation_chat_id),
		project_id = COALESCE(?, project_id),
		chat_url = COALESCE(?, chat_url),
		deployment_url = COALESCE(?, deployment_url),
		source_repo_url = COALESCE(?, source_repo_url),
		latest_version_id = COALESCE(?, latest_version_id),
		updated_at = ?
	WHERE tracker_session_id = ?`

	exec := func() (sql.Result, error) {
		return s.db.ExecContext(ctx, query,
			upd.GenerationChatID, upd.ProjectID, upd.ChatURL,
			upd.DeploymentURL, upd.SourceRepoURL, upd.LatestVersionID,
			time.Now().Unix(), trackerSessionID,
		)
	}

	result, err := exec()
	if err != nil && shared.IsSQLiteConflictError(err) {
		time.Sleep(100 * time.Millisecond)
		result, err = exec()
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Debug("UpdateSession affected 0 rows", "tracker_session_id", trackerSessionID)
	}
	return nil
}

// DeleteSession removes a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, trackerSessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE tracker_session_id = ?`, trackerSessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListSessions returns all sessions ordered by creation time.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	query := `
		SELECT tracker_session_id, generation_chat_id, project_id, chat_url,
		       deployment_url, source_repo_url, latest_version_id, created_at, updated_at
		FROM sessions ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close sessions rows", "error", closeErr)
		}
	}()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// CleanupExpiredSessions removes sessions idle longer than ttl.
func (s *SQLiteStore) CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
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

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var projectID, chatURL, deploymentURL, sourceRepoURL, latestVersionID sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.TrackerSessionID, &session.GenerationChatID,
		&projectID, &chatURL, &deploymentURL, &sourceRepoURL, &latestVersionID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.ProjectID = projectID.String
	session.ChatURL = chatURL.String
	session.DeploymentURL = deploymentURL.String
	session.SourceRepoURL = sourceRepoURL.String
	session.LatestVersionID = latestVersionID.String
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)
	return &session, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
