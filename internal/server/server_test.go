package server

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spendcap/spendcap/internal/store"
)

func TestDiffSnapshots(t *testing.T) {
	prev := Snapshot{
		Sessions: 10,
		Requests: 100,
		Tokens:   1_000_000,
		CostUSD:  10.5,
	}
	curr := Snapshot{
		Sessions: 12,
		Requests: 112,
		Tokens:   1_250_000,
		CostUSD:  13.1,
	}

	delta := diffSnapshots(prev, curr)
	if delta.Sessions != 2 {
		t.Fatalf("Sessions delta = %d, want 2", delta.Sessions)
	}
	if delta.Requests != 12 {
		t.Fatalf("Requests delta = %d, want 12", delta.Requests)
	}
	if delta.Tokens != 250_000 {
		t.Fatalf("Tokens delta = %d, want 250000", delta.Tokens)
	}
	if math.Abs(delta.CostUSD-2.6) > 1e-9 {
		t.Fatalf("Cost delta = %.2f, want 2.60", delta.CostUSD)
	}
	if delta.isZero() {
		t.Fatal("delta unexpectedly reported as zero")
	}
}

func TestPublishEventRingBuffer(t *testing.T) {
	s := New(nil, Config{
		Interval:     10 * time.Second,
		EventsBuffer: 2,
	})

	s.publishEvent(Event{ID: 1})
	s.publishEvent(Event{ID: 2})
	s.publishEvent(Event{ID: 3})

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) != 2 {
		t.Fatalf("events len = %d, want 2", len(s.events))
	}
	if s.events[0].ID != 2 || s.events[1].ID != 3 {
		t.Fatalf("events ring contains IDs [%d, %d], want [2, 3]", s.events[0].ID, s.events[1].ID)
	}
}

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, Config{Interval: time.Hour}), db
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out any) *http.Response {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", path, err)
		}
	}
	return resp
}

func TestHTTPEndpoints(t *testing.T) {
	s, db := newTestService(t)

	sess, err := db.CreateSession("claude-3-7-sonnet-20250219", "anthropic", "run")
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	if err := db.RecordModelUsage(sess.ID, 0.0105, 1000, 500, 1.5, "claude-3-7-sonnet-20250219"); err != nil {
		t.Fatalf("recording usage: %v", err)
	}

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	if resp := getJSON(t, ts, "/healthz", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	var sessions struct {
		Sessions []store.Session `json:"sessions"`
		Total    int             `json:"total"`
	}
	getJSON(t, ts, "/v1/sessions", &sessions)
	if sessions.Total != 1 || len(sessions.Sessions) != 1 {
		t.Fatalf("sessions = %+v", sessions)
	}

	var single store.Session
	getJSON(t, ts, "/v1/sessions/"+sess.ID, &single)
	if single.ID != sess.ID {
		t.Fatalf("session id = %s, want %s", single.ID, sess.ID)
	}

	if resp := getJSON(t, ts, "/v1/sessions/does-not-exist", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing session status = %d, want 404", resp.StatusCode)
	}

	var records []store.Trajectory
	getJSON(t, ts, "/v1/sessions/"+sess.ID+"/trajectories", &records)
	if len(records) != 1 || records[0].RecordType != store.RecordModelUsage {
		t.Fatalf("trajectories = %+v", records)
	}

	var usage struct {
		Summary struct {
			Requests    int64   `json:"requests"`
			TotalTokens int64   `json:"total_tokens"`
			Cost        float64 `json:"cost"`
		} `json:"summary"`
	}
	getJSON(t, ts, "/v1/usage", &usage)
	if usage.Summary.Requests != 1 || usage.Summary.TotalTokens != 1500 {
		t.Fatalf("usage summary = %+v", usage.Summary)
	}
}

func TestPollPublishesDeltaEvents(t *testing.T) {
	s, db := newTestService(t)

	s.pollOnce()
	if len(s.events) != 1 || s.events[0].Type != "snapshot" {
		t.Fatalf("events after first poll = %+v", s.events)
	}

	// No change, no event.
	s.pollOnce()
	if len(s.events) != 1 {
		t.Fatalf("events after idle poll = %d, want 1", len(s.events))
	}

	sess, err := db.CreateSession("m", "p", "")
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	if err := db.RecordModelUsage(sess.ID, 0.01, 100, 50, 1.0, "m"); err != nil {
		t.Fatalf("recording usage: %v", err)
	}

	s.pollOnce()
	if len(s.events) != 2 {
		t.Fatalf("events after usage poll = %d, want 2", len(s.events))
	}
	ev := s.events[1]
	if ev.Type != "usage_delta" {
		t.Fatalf("event type = %s", ev.Type)
	}
	if ev.Delta.Requests != 1 || ev.Delta.Tokens != 150 {
		t.Fatalf("delta = %+v", ev.Delta)
	}
}
