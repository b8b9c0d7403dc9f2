// Package report shapes stored usage records into summary, per-model, and
// per-day views for the CLI and server surfaces.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/spendcap/spendcap/internal/store"
)

// Summary is the headline view across a set of sessions.
type Summary struct {
	Sessions     int     `json:"sessions"`
	Requests     int64   `json:"requests"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalTokens  int64   `json:"total_tokens"`
	Cost         float64 `json:"cost"`
	DurationSecs float64 `json:"duration_secs"`

	ActiveDays   int     `json:"active_days"`
	CostPerDay   float64 `json:"cost_per_day"`
	TokensPerDay int64   `json:"tokens_per_day"`
}

// ModelRow is one model's share of total spend.
type ModelRow struct {
	store.ModelUsage
	Share float64 `json:"share"`
}

// Day is usage for one UTC day, gap-filled so charts show zeros.
type Day struct {
	Date time.Time `json:"date"`
	store.UsageTotals
}

// Summarize folds session count, overall totals, and per-day rows into a
// Summary. Per-day rates divide by active days, not calendar days.
func Summarize(sessions int, totals store.UsageTotals, days []store.DayUsage) Summary {
	s := Summary{
		Sessions:     sessions,
		Requests:     totals.Requests,
		InputTokens:  totals.InputTokens,
		OutputTokens: totals.OutputTokens,
		TotalTokens:  totals.InputTokens + totals.OutputTokens,
		Cost:         totals.Cost,
		DurationSecs: totals.Duration,
	}

	for _, d := range days {
		if d.Requests > 0 {
			s.ActiveDays++
		}
	}
	if s.ActiveDays > 0 {
		n := float64(s.ActiveDays)
		s.CostPerDay = s.Cost / n
		s.TokensPerDay = int64(float64(s.TotalTokens) / n)
	}

	return s
}

// Breakdown annotates per-model rows with each model's share of total cost.
// Input order (most expensive first) is preserved.
func Breakdown(rows []store.ModelUsage) []ModelRow {
	var total float64
	for _, r := range rows {
		total += r.Cost
	}

	result := make([]ModelRow, 0, len(rows))
	for _, r := range rows {
		row := ModelRow{ModelUsage: r}
		if total > 0 {
			row.Share = r.Cost / total
		}
		result = append(result, row)
	}
	return result
}

// FillDays expands sparse per-day rows to cover every day in [since, until],
// most recent first.
func FillDays(rows []store.DayUsage, since, until time.Time) []Day {
	byDay := make(map[string]store.UsageTotals, len(rows))
	for _, r := range rows {
		byDay[r.Day] = r.UsageTotals
	}

	var days []Day
	day := since.UTC().Truncate(24 * time.Hour)
	end := until.UTC().Truncate(24 * time.Hour)
	for !day.After(end) {
		key := day.Format("2006-01-02")
		days = append(days, Day{Date: day, UsageTotals: byDay[key]})
		day = day.AddDate(0, 0, 1)
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.After(days[j].Date)
	})
	return days
}

// Build queries the store and assembles the full report for the last n days.
func Build(s *store.Store, days int) (Summary, []ModelRow, []Day, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	_, sessions, err := s.ListSessions(1, 0)
	if err != nil {
		return Summary{}, nil, nil, fmt.Errorf("counting sessions: %w", err)
	}

	totals, err := s.SessionUsage("")
	if err != nil {
		return Summary{}, nil, nil, fmt.Errorf("loading totals: %w", err)
	}

	dayRows, err := s.UsageByDay(since)
	if err != nil {
		return Summary{}, nil, nil, fmt.Errorf("loading daily usage: %w", err)
	}

	modelRows, err := s.UsageByModel("")
	if err != nil {
		return Summary{}, nil, nil, fmt.Errorf("loading model usage: %w", err)
	}

	summary := Summarize(sessions, totals, dayRows)
	return summary, Breakdown(modelRows), FillDays(dayRows, since, now), nil
}
