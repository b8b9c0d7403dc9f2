// Package store provides the SQLite-backed session, trajectory, and config
// repositories.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Store wraps the SQLite database holding sessions, trajectory records, and
// runtime configuration.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Session is one unit of agent work grouping many LLM calls.
type Session struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
	Status      string    `json:"status"`
	Model       string    `json:"model,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
}

// CreateSession inserts a new active session and returns it.
func (s *Store) CreateSession(model, provider, displayName string) (Session, error) {
	sess := Session{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Status:      "active",
		Model:       model,
		Provider:    provider,
		DisplayName: displayName,
	}

	_, err := s.db.Exec(`INSERT INTO sessions
		(session_id, created_at, status, model, provider, display_name)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.CreatedAt.Format(time.RFC3339Nano), sess.Status,
		sess.Model, sess.Provider, sess.DisplayName,
	)
	if err != nil {
		return Session{}, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// CurrentSession returns the most recently created active session, or nil
// when there is none.
func (s *Store) CurrentSession() (*Session, error) {
	row := s.db.QueryRow(`SELECT session_id, created_at, updated_at, status, model, provider, display_name
		FROM sessions WHERE status = 'active' ORDER BY created_at DESC LIMIT 1`)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// CurrentSessionID returns the id of the current session, or "" when none
// exists. Satisfies the accounting handler's session source contract.
func (s *Store) CurrentSessionID() (string, error) {
	sess, err := s.CurrentSession()
	if err != nil || sess == nil {
		return "", err
	}
	return sess.ID, nil
}

// GetSession returns one session by id, or nil when not found.
func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(`SELECT session_id, created_at, updated_at, status, model, provider, display_name
		FROM sessions WHERE session_id = ?`, id)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns sessions newest first, plus the total count for
// pagination.
func (s *Store) ListSessions(limit, offset int) ([]Session, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`SELECT session_id, created_at, updated_at, status, model, provider, display_name
		FROM sessions ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, total, rows.Err()
}

// EndSession marks a session completed.
func (s *Store) EndSession(id string) error {
	_, err := s.db.Exec(`UPDATE sessions SET status = 'completed', updated_at = ? WHERE session_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	return err
}

// DeleteSession removes a session and, via cascade, its trajectory records.
func (s *Store) DeleteSession(id string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE session_id = ?", id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (Session, error) {
	var sess Session
	var createdStr string
	var updatedStr, model, provider, displayName sql.NullString

	err := r.Scan(&sess.ID, &createdStr, &updatedStr, &sess.Status, &model, &provider, &displayName)
	if err != nil {
		return Session{}, err
	}

	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if updatedStr.Valid && updatedStr.String != "" {
		sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr.String)
	}
	sess.Model = model.String
	sess.Provider = provider.String
	sess.DisplayName = displayName.String
	return sess, nil
}
