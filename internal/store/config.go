package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Runtime configuration keys read by the accounting subsystem.
const (
	KeyMaxCost     = "max_cost"
	KeyMaxTokens   = "max_tokens"
	KeyExitAtLimit = "exit_at_limit"
	KeyShowCost    = "show_cost"
)

// Set stores a JSON-encoded config value.
func (s *Store) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding config %q: %w", key, err)
	}
	_, err = s.db.Exec(`INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, string(data))
	return err
}

// getRaw returns the stored JSON for a key, or "" when unset.
func (s *Store) getRaw(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// GetFloat returns a float config value, or def when unset or malformed.
func (s *Store) GetFloat(key string, def float64) float64 {
	raw, err := s.getRaw(key)
	if err != nil || raw == "" {
		return def
	}
	var v float64
	if json.Unmarshal([]byte(raw), &v) != nil {
		return def
	}
	return v
}

// GetInt64 returns an integer config value, or def when unset or malformed.
func (s *Store) GetInt64(key string, def int64) int64 {
	raw, err := s.getRaw(key)
	if err != nil || raw == "" {
		return def
	}
	var v int64
	if json.Unmarshal([]byte(raw), &v) != nil {
		return def
	}
	return v
}

// GetBool returns a boolean config value, or def when unset or malformed.
func (s *Store) GetBool(key string, def bool) bool {
	raw, err := s.getRaw(key)
	if err != nil || raw == "" {
		return def
	}
	var v bool
	if json.Unmarshal([]byte(raw), &v) != nil {
		return def
	}
	return v
}

// GetString returns a string config value, or def when unset or malformed.
func (s *Store) GetString(key string, def string) string {
	raw, err := s.getRaw(key)
	if err != nil || raw == "" {
		return def
	}
	var v string
	if json.Unmarshal([]byte(raw), &v) != nil {
		return def
	}
	return v
}

// Unset removes a config key.
func (s *Store) Unset(key string) error {
	_, err := s.db.Exec("DELETE FROM config WHERE key = ?", key)
	return err
}

// ConfigEntries returns all stored config as key -> raw JSON value.
func (s *Store) ConfigEntries() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM config ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, rows.Err()
}
