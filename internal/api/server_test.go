package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"socsim/internal/config"
	"socsim/internal/ledger"
	"socsim/internal/model"
	"socsim/internal/session"
	"socsim/internal/stats"
	"socsim/internal/storage"
	"socsim/internal/threat"
)

type memStore struct {
	mu     sync.Mutex
	events []model.Event
	scores map[string]model.Score
}

func newMemStore() *memStore {
	return &memStore{scores: make(map[string]model.Score)}
}

func (m *memStore) Init(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

func (m *memStore) InsertEvent(_ context.Context, ev model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) GetEvent(_ context.Context, id string) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return model.Event{}, storage.ErrNotFound
}

func (m *memStore) ListEvents(_ context.Context, sessionID string, limit int, severity *model.Severity) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Event, 0)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := m.events[i]
		if ev.SessionID != sessionID {
			continue
		}
		if severity != nil && ev.Severity != *severity {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (m *memStore) CountEvents(_ context.Context, sessionID string) (int, error) {
	return m.count(sessionID, func(model.Event) bool { return true }), nil
}

func (m *memStore) CountAnomalies(_ context.Context, sessionID string) (int, error) {
	return m.count(sessionID, func(ev model.Event) bool { return ev.IsAnomaly }), nil
}

func (m *memStore) CountCritical(_ context.Context, sessionID string) (int, error) {
	return m.count(sessionID, func(ev model.Event) bool { return ev.Severity == model.SeverityCritical }), nil
}

func (m *memStore) count(sessionID string, match func(model.Event) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.SessionID == sessionID && match(ev) {
			n++
		}
	}
	return n
}

func (m *memStore) SaveScore(_ context.Context, score model.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[score.SessionID] = score
	return nil
}

func (m *memStore) GetScore(_ context.Context, sessionID string) (model.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score, ok := m.scores[sessionID]
	if !ok {
		return model.Score{}, storage.ErrNotFound
	}
	return score, nil
}

func newTestServer(store storage.Store) (*Server, *session.Manager) {
	cfg := config.DefaultConfig()
	cfg.Simulation.TickInterval = 5 * time.Millisecond
	manager := config.NewStaticManager(cfg)
	scorer := threat.NewScorer(nil, nil)
	statsStore := stats.NewStore()
	sessions := session.NewManager(manager, scorer, store, ledger.New(), statsStore, nil, nil)
	return &Server{
		cfg:      manager,
		sessions: sessions,
		store:    store,
		scorer:   scorer,
		stats:    statsStore,
	}, sessions
}

func doJSON(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestStartStopOverHTTP(t *testing.T) {
	store := newMemStore()
	s, sessions := newTestServer(store)
	defer sessions.StopAll()

	rec, body := doJSON(t, s, http.MethodPost, "/api/v1/simulations",
		`{"scenario": "brute_force", "difficulty": "hard"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatalf("no session_id in response: %v", body)
	}

	rec, body = doJSON(t, s, http.MethodGet, "/api/v1/simulations/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status status = %d", rec.Code)
	}
	if body["scenario"] != "brute_force" || body["difficulty"] != "hard" {
		t.Fatalf("status payload: %v", body)
	}

	time.Sleep(20 * time.Millisecond)

	rec, body = doJSON(t, s, http.MethodDelete, "/api/v1/simulations/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["grade"] == "" || body["grade"] == nil {
		t.Fatalf("stop did not return a score: %v", body)
	}

	// Score persisted and retrievable.
	rec, _ = doJSON(t, s, http.MethodGet, "/api/v1/scores/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("score status = %d", rec.Code)
	}

	// Status flips to completed once the session is stopped and scored.
	rec, body = doJSON(t, s, http.MethodGet, "/api/v1/simulations/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("completed status = %d", rec.Code)
	}
	if body["status"] != string(model.StatusCompleted) {
		t.Fatalf("status = %v, want completed", body["status"])
	}
	score, ok := body["score"].(map[string]any)
	if !ok || score["grade"] == "" || score["grade"] == nil {
		t.Fatalf("completed status missing score: %v", body)
	}
}

func TestStartRejectsUnknownScenario(t *testing.T) {
	s, sessions := newTestServer(newMemStore())
	defer sessions.StopAll()

	rec, _ := doJSON(t, s, http.MethodPost, "/api/v1/simulations",
		`{"scenario": "meteor_strike", "difficulty": "easy"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec, _ = doJSON(t, s, http.MethodPost, "/api/v1/simulations", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestStopUnknownSessionIs404(t *testing.T) {
	s, _ := newTestServer(newMemStore())
	rec, _ := doJSON(t, s, http.MethodDelete, "/api/v1/simulations/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	store := newMemStore()
	s, _ := newTestServer(store)

	for i, sev := range []model.Severity{model.SeverityLow, model.SeverityCritical, model.SeverityCritical} {
		_ = store.InsertEvent(context.Background(), model.Event{
			ID:        "ev-" + string(rune('a'+i)),
			SessionID: "sim-1",
			Severity:  sev,
		})
	}

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs?simulation_id=sim-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var events []model.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs?simulation_id=sim-1&severity=critical&limit=10", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d critical events, want 2", len(events))
	}

	cases := []string{
		"/api/v1/logs",
		"/api/v1/logs?simulation_id=sim-1&limit=0",
		"/api/v1/logs?simulation_id=sim-1&limit=501",
		"/api/v1/logs?simulation_id=sim-1&severity=apocalyptic",
	}
	for _, path := range cases {
		rec = httptest.NewRecorder()
		s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d, want 400", path, rec.Code)
		}
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	s, _ := newTestServer(newMemStore())

	rec, body := doJSON(t, s, http.MethodPost, "/api/v1/analyze",
		`{"log_id": "ev-1", "event_type": "SSH_LOGIN_ATTEMPT", "raw_payload": "Failed password for root", "severity": "critical", "protocol": "TCP", "dest_port": 22}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["threat_label"] != "brute_force" {
		t.Fatalf("threat_label = %v", body["threat_label"])
	}
	if body["is_anomaly"] != true {
		t.Fatalf("critical payload should flag anomalous: %v", body)
	}
	if body["recommendation"] == "" || body["recommendation"] == nil {
		t.Fatalf("missing recommendation")
	}
}

func TestDecisionEndpoint(t *testing.T) {
	store := newMemStore()
	s, sessions := newTestServer(store)
	defer sessions.StopAll()

	id, err := sessions.Start(context.Background(), "ddos", "medium")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	rec, body := doJSON(t, s, http.MethodPost, "/api/v1/decisions",
		`{"simulation_id": "`+id+`", "analyst_label": "ddos", "correct_label": "ddos", "time_taken_sec": 14}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["status"] != "recorded" || body["correct"] != true {
		t.Fatalf("decision payload: %v", body)
	}

	rec, _ = doJSON(t, s, http.MethodPost, "/api/v1/decisions",
		`{"simulation_id": "ghost", "analyst_label": "ddos", "correct_label": "ddos", "time_taken_sec": 1}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session status = %d, want 404", rec.Code)
	}
}

func TestScoreAndReportMissing(t *testing.T) {
	s, _ := newTestServer(newMemStore())
	for _, path := range []string{"/api/v1/scores/ghost", "/api/v1/reports/ghost"} {
		rec, _ := doJSON(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestReportEndpoint(t *testing.T) {
	store := newMemStore()
	s, _ := newTestServer(store)

	_ = store.SaveScore(context.Background(), model.Score{
		SessionID:          "sim-1",
		DetectionAccuracy:  90,
		FalsePositiveRate:  10,
		ResponseSpeed:      80,
		CorrectEscalations: 9,
		TechnicalScore:     89,
		AvgDecisionTimeSec: 20,
		DecisionAccuracy:   90,
		StressFactor:       1.2,
		PressureScore:      84,
		FinalScore:         86.8,
		Grade:              "B",
		ScoredAt:           time.Now().UTC(),
	})

	rec, body := doJSON(t, s, http.MethodGet, "/api/v1/reports/sim-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["grade"] != "B" {
		t.Fatalf("grade = %v", body["grade"])
	}
	tech, ok := body["technical_breakdown"].(map[string]any)
	if !ok || tech["detection_accuracy"] != 90.0 {
		t.Fatalf("technical breakdown: %v", body["technical_breakdown"])
	}
	recs, ok := body["recommendations"].([]any)
	if !ok || len(recs) == 0 {
		t.Fatalf("recommendations: %v", body["recommendations"])
	}
}
