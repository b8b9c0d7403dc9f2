package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Trajectory record types written by the accounting subsystem.
const (
	RecordModelUsage   = "model_usage"
	RecordLimitReached = "limit_reached"
)

// Trajectory is one immutable append-only event for a session.
type Trajectory struct {
	ID           int64          `json:"id"`
	SessionID    string         `json:"session_id"`
	RecordType   string         `json:"record_type"`
	Cost         float64        `json:"cost"`
	InputTokens  int64          `json:"input_tokens"`
	OutputTokens int64          `json:"output_tokens"`
	Model        string         `json:"model,omitempty"`
	StepData     map[string]any `json:"step_data,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// CreateTrajectory appends a record and returns its id.
func (s *Store) CreateTrajectory(t Trajectory) (int64, error) {
	var stepData []byte
	if t.StepData != nil {
		var err error
		stepData, err = json.Marshal(t.StepData)
		if err != nil {
			return 0, fmt.Errorf("encoding step data: %w", err)
		}
	}

	res, err := s.db.Exec(`INSERT INTO trajectories
		(session_id, record_type, cost, input_tokens, output_tokens, model, step_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.RecordType, t.Cost, t.InputTokens, t.OutputTokens,
		t.Model, nullableString(stepData), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("creating trajectory: %w", err)
	}
	return res.LastInsertId()
}

// RecordModelUsage writes a model_usage record. Satisfies the accounting
// handler's recorder contract.
func (s *Store) RecordModelUsage(sessionID string, cost float64, inputTokens, outputTokens uint64, duration float64, model string) error {
	_, err := s.CreateTrajectory(Trajectory{
		SessionID:    sessionID,
		RecordType:   RecordModelUsage,
		Cost:         cost,
		InputTokens:  int64(inputTokens),
		OutputTokens: int64(outputTokens),
		Model:        model,
		StepData: map[string]any{
			"duration": duration,
			"model":    model,
		},
	})
	return err
}

// RecordLimitReached writes a limit_reached record.
func (s *Store) RecordLimitReached(sessionID, limitType string, current, limit float64, exitAtLimit bool) error {
	_, err := s.CreateTrajectory(Trajectory{
		SessionID:  sessionID,
		RecordType: RecordLimitReached,
		StepData: map[string]any{
			"limit_type":    limitType,
			"current_value": current,
			"limit_value":   limit,
			"exit_at_limit": exitAtLimit,
		},
	})
	return err
}

// ListTrajectories returns a session's records oldest first.
func (s *Store) ListTrajectories(sessionID string) ([]Trajectory, error) {
	rows, err := s.db.Query(`SELECT id, session_id, record_type, cost, input_tokens, output_tokens, model, step_data, created_at
		FROM trajectories WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []Trajectory
	for rows.Next() {
		var t Trajectory
		var model, stepData sql.NullString
		var createdStr string

		err := rows.Scan(&t.ID, &t.SessionID, &t.RecordType, &t.Cost,
			&t.InputTokens, &t.OutputTokens, &model, &stepData, &createdStr)
		if err != nil {
			return nil, err
		}

		t.Model = model.String
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		if stepData.Valid && stepData.String != "" {
			_ = json.Unmarshal([]byte(stepData.String), &t.StepData)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// UsageTotals aggregates model_usage records.
type UsageTotals struct {
	Requests     int64   `json:"requests"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
	Duration     float64 `json:"duration"`
}

// ModelUsage is UsageTotals for one model.
type ModelUsage struct {
	Model string `json:"model"`
	UsageTotals
}

// DayUsage is UsageTotals for one UTC day.
type DayUsage struct {
	Day string `json:"day"`
	UsageTotals
}

const usageAggregate = `COUNT(*),
	COALESCE(SUM(input_tokens), 0),
	COALESCE(SUM(output_tokens), 0),
	COALESCE(SUM(cost), 0),
	COALESCE(SUM(json_extract(step_data, '$.duration')), 0)`

// SessionUsage aggregates usage for one session, or for all sessions when
// sessionID is empty.
func (s *Store) SessionUsage(sessionID string) (UsageTotals, error) {
	query := `SELECT ` + usageAggregate + ` FROM trajectories WHERE record_type = ?`
	args := []any{RecordModelUsage}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}

	var u UsageTotals
	err := s.db.QueryRow(query, args...).Scan(
		&u.Requests, &u.InputTokens, &u.OutputTokens, &u.Cost, &u.Duration)
	return u, err
}

// UsageByModel aggregates usage per model, most expensive first. Empty
// sessionID covers all sessions.
func (s *Store) UsageByModel(sessionID string) ([]ModelUsage, error) {
	query := `SELECT COALESCE(model, ''), ` + usageAggregate + `
		FROM trajectories WHERE record_type = ?`
	args := []any{RecordModelUsage}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	query += ` GROUP BY model ORDER BY SUM(cost) DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []ModelUsage
	for rows.Next() {
		var m ModelUsage
		if err := rows.Scan(&m.Model, &m.Requests, &m.InputTokens, &m.OutputTokens, &m.Cost, &m.Duration); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// UsageByDay aggregates usage per UTC day since the given time.
func (s *Store) UsageByDay(since time.Time) ([]DayUsage, error) {
	rows, err := s.db.Query(`SELECT substr(created_at, 1, 10), `+usageAggregate+`
		FROM trajectories
		WHERE record_type = ? AND created_at >= ?
		GROUP BY substr(created_at, 1, 10)
		ORDER BY substr(created_at, 1, 10)`,
		RecordModelUsage, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []DayUsage
	for rows.Next() {
		var d DayUsage
		if err := rows.Scan(&d.Day, &d.Requests, &d.InputTokens, &d.OutputTokens, &d.Cost, &d.Duration); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
