package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)

	sess, err := s.CreateSession("claude-3-7-sonnet-20250219", "anthropic", "refactor run")
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("session id is empty")
	}

	current, err := s.CurrentSession()
	if err != nil {
		t.Fatalf("current session: %v", err)
	}
	if current == nil || current.ID != sess.ID {
		t.Fatalf("current session = %+v, want id %s", current, sess.ID)
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Model != "claude-3-7-sonnet-20250219" || got.Provider != "anthropic" {
		t.Fatalf("session fields = %+v", got)
	}

	if err := s.EndSession(sess.ID); err != nil {
		t.Fatalf("ending session: %v", err)
	}
	current, err = s.CurrentSession()
	if err != nil {
		t.Fatalf("current session after end: %v", err)
	}
	if current != nil {
		t.Fatalf("expected no active session, got %+v", current)
	}
}

func TestCurrentSessionEmptyStore(t *testing.T) {
	s := openTestStore(t)

	current, err := s.CurrentSession()
	if err != nil {
		t.Fatalf("current session: %v", err)
	}
	if current != nil {
		t.Fatalf("expected nil, got %+v", current)
	}

	id, err := s.CurrentSessionID()
	if err != nil || id != "" {
		t.Fatalf("CurrentSessionID = (%q, %v), want empty", id, err)
	}
}

func TestListSessionsPagination(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		if _, err := s.CreateSession("m", "p", ""); err != nil {
			t.Fatalf("creating session %d: %v", i, err)
		}
		// created_at ordering needs distinct timestamps
		time.Sleep(2 * time.Millisecond)
	}

	page, total, err := s.ListSessions(2, 0)
	if err != nil {
		t.Fatalf("listing sessions: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	if !page[0].CreatedAt.After(page[1].CreatedAt) {
		t.Fatal("sessions not ordered newest first")
	}
}

func TestTrajectoryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.CreateSession("m", "p", "")
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}

	if err := s.RecordModelUsage(sess.ID, 0.0105, 1000, 500, 1.25, "claude-3-7-sonnet-20250219"); err != nil {
		t.Fatalf("recording usage: %v", err)
	}
	if err := s.RecordLimitReached(sess.ID, "cost", 0.02, 0.01, false); err != nil {
		t.Fatalf("recording limit: %v", err)
	}

	records, err := s.ListTrajectories(sess.ID)
	if err != nil {
		t.Fatalf("listing trajectories: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2", len(records))
	}

	u := records[0]
	if u.RecordType != RecordModelUsage || u.Cost != 0.0105 || u.InputTokens != 1000 || u.OutputTokens != 500 {
		t.Fatalf("usage record = %+v", u)
	}
	if u.StepData["model"] != "claude-3-7-sonnet-20250219" {
		t.Fatalf("step data = %+v", u.StepData)
	}

	l := records[1]
	if l.RecordType != RecordLimitReached {
		t.Fatalf("limit record type = %s", l.RecordType)
	}
	if l.StepData["limit_type"] != "cost" || l.StepData["exit_at_limit"] != false {
		t.Fatalf("limit step data = %+v", l.StepData)
	}
}

func TestUsageAggregation(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.CreateSession("m", "p", "")
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	other, err := s.CreateSession("m", "p", "")
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}

	_ = s.RecordModelUsage(sess.ID, 0.01, 100, 50, 1.0, "model-a")
	_ = s.RecordModelUsage(sess.ID, 0.02, 200, 100, 2.0, "model-b")
	_ = s.RecordModelUsage(other.ID, 0.04, 400, 200, 4.0, "model-a")

	u, err := s.SessionUsage(sess.ID)
	if err != nil {
		t.Fatalf("session usage: %v", err)
	}
	if u.Requests != 2 || u.InputTokens != 300 || u.OutputTokens != 150 {
		t.Fatalf("session usage = %+v", u)
	}
	if u.Cost < 0.0299 || u.Cost > 0.0301 {
		t.Fatalf("session cost = %v, want 0.03", u.Cost)
	}
	if u.Duration < 2.99 || u.Duration > 3.01 {
		t.Fatalf("session duration = %v, want 3.0", u.Duration)
	}

	all, err := s.SessionUsage("")
	if err != nil {
		t.Fatalf("all usage: %v", err)
	}
	if all.Requests != 3 || all.InputTokens != 700 {
		t.Fatalf("all usage = %+v", all)
	}

	byModel, err := s.UsageByModel("")
	if err != nil {
		t.Fatalf("usage by model: %v", err)
	}
	if len(byModel) != 2 {
		t.Fatalf("model rows = %d, want 2", len(byModel))
	}
	// model-a: 0.01 + 0.04 = 0.05, sorts first
	if byModel[0].Model != "model-a" || byModel[0].Requests != 2 {
		t.Fatalf("top model = %+v", byModel[0])
	}

	byDay, err := s.UsageByDay(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("usage by day: %v", err)
	}
	if len(byDay) != 1 || byDay[0].Requests != 3 {
		t.Fatalf("day rows = %+v", byDay)
	}
}

func TestConfigRepo(t *testing.T) {
	s := openTestStore(t)

	if got := s.GetFloat(KeyMaxCost, 0); got != 0 {
		t.Fatalf("unset max_cost = %v, want 0", got)
	}
	if got := s.GetBool(KeyShowCost, true); got != true {
		t.Fatal("unset show_cost should return default")
	}

	if err := s.Set(KeyMaxCost, 2.5); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(KeyMaxTokens, 50000); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(KeyExitAtLimit, true); err != nil {
		t.Fatalf("set: %v", err)
	}

	if got := s.GetFloat(KeyMaxCost, 0); got != 2.5 {
		t.Fatalf("max_cost = %v, want 2.5", got)
	}
	if got := s.GetInt64(KeyMaxTokens, 0); got != 50000 {
		t.Fatalf("max_tokens = %v, want 50000", got)
	}
	if got := s.GetBool(KeyExitAtLimit, false); !got {
		t.Fatal("exit_at_limit = false, want true")
	}

	// Overwrite
	if err := s.Set(KeyMaxCost, 10.0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := s.GetFloat(KeyMaxCost, 0); got != 10.0 {
		t.Fatalf("max_cost = %v, want 10", got)
	}

	entries, err := s.ConfigEntries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entry count = %d, want 3", len(entries))
	}

	if err := s.Unset(KeyMaxCost); err != nil {
		t.Fatalf("unset: %v", err)
	}
	if got := s.GetFloat(KeyMaxCost, -1); got != -1 {
		t.Fatalf("unset max_cost = %v, want default", got)
	}
}
