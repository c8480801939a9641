package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"deskagent/internal/domain"
	"deskagent/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	sessionMu sync.Mutex // Serializes session log read-modify-write to prevent SQLITE_BUSY
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
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		profile_json TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		events_json TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

	CREATE TABLE IF NOT EXISTS memories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id, created_at);
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
		SELECT user_id, name, email, profile_json, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var profileJSON string
	var createdAt, updatedAt int64

	err := row.Scan(&user.ID, &user.Name, &user.Email, &profileJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	if err := json.Unmarshal([]byte(profileJSON), &user.Profile); err != nil {
		return nil, fmt.Errorf("decode user profile: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	profile := user.Profile
	if profile == nil {
		profile = map[string]string{}
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode user profile: %w", err)
	}

	now := time.Now()
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
	INSERT INTO users (user_id, name, email, profile_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		name = excluded.name,
		email = excluded.email,
		profile_json = excluded.profile_json,
		updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, string(profileJSON),
		createdAt.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// AppendSessionEvent appends one event to a session's ordered log.
// The log lives in a single row as a JSON array; the read-modify-write
// is serialized by sessionMu and retried on SQLite lock conflicts.
func (s *SQLiteStore) AppendSessionEvent(ctx context.Context, sessionID, userID string, event domain.Event) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.appendSessionEventOnce(ctx, sessionID, userID, event)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
			slog.Debug("AppendSessionEvent hit SQLITE_BUSY, retrying",
				"session_id", sessionID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("append session event for %s: %w", sessionID, err)
	}

	return nil
}

func (s *SQLiteStore) appendSessionEventOnce(ctx context.Context, sessionID, userID string, event domain.Event) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	var eventsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT events_json FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&eventsJSON)

	now := time.Now().Unix()

	if err == sql.ErrNoRows {
		encoded, err := json.Marshal([]domain.Event{event})
		if err != nil {
			return fmt.Errorf("encode events: %w", err)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO sessions (session_id, user_id, events_json, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			sessionID, userID, string(encoded), now, now,
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session events: %w", err)
	}

	var events []domain.Event
	if err := json.Unmarshal([]byte(eventsJSON), &events); err != nil {
		return fmt.Errorf("decode session events: %w", err)
	}
	events = append(events, event)

	encoded, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET events_json = ?, updated_at = ? WHERE session_id = ?`,
		string(encoded), now, sessionID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// GetSessionEvents returns a session's events in insertion order.
func (s *SQLiteStore) GetSessionEvents(ctx context.Context, sessionID string) ([]domain.Event, error) {
	var eventsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT events_json FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&eventsJSON)
	if err == sql.ErrNoRows {
		return []domain.Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session events: %w", err)
	}

	var events []domain.Event
	if err := json.Unmarshal([]byte(eventsJSON), &events); err != nil {
		return nil, fmt.Errorf("decode session events: %w", err)
	}
	return events, nil
}

// AddMemory appends a memory entry for a user.
func (s *SQLiteStore) AddMemory(ctx context.Context, userID, category, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (user_id, category, content, created_at) VALUES (?, ?, ?, ?)`,
		userID, category, content, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("add memory: %w", err)
	}
	return nil
}

// RetrieveMemories returns at most limit entries, most-recent-first.
func (s *SQLiteStore) RetrieveMemories(ctx context.Context, userID, keyword string, limit int) ([]domain.MemoryEntry, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT user_id, category, content, created_at
		FROM memories WHERE user_id = ?`
	args := []any{userID}

	if keyword != "" {
		query += ` AND lower(content) LIKE ?`
		args = append(args, "%"+strings.ToLower(keyword)+"%")
	}

	// id DESC breaks ties between entries created in the same second.
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close memories rows", "error", closeErr)
		}
	}()

	var entries []domain.MemoryEntry
	for rows.Next() {
		var entry domain.MemoryEntry
		var createdAt int64
		if err := rows.Scan(&entry.UserID, &entry.Category, &entry.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		entry.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}

	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
