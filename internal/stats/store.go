package stats

import (
	"sync"
	"time"

	"socsim/internal/model"
)

// SessionStats are live counters for one running session, updated by the
// generator as events flow. They back the status API only; the scoring
// engine reads its aggregates from the log store.
type SessionStats struct {
	TotalEvents    int       `json:"total_events"`
	TotalAnomalies int       `json:"total_anomalies"`
	TotalCritical  int       `json:"total_critical"`
	LastEventAt    time.Time `json:"last_event_at"`
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]SessionStats
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]SessionStats)}
}

func (s *Store) Observe(sessionID string, ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.sessions[sessionID]
	st.TotalEvents++
	if ev.IsAnomaly {
		st.TotalAnomalies++
	}
	if ev.Severity == model.SeverityCritical {
		st.TotalCritical++
	}
	st.LastEventAt = ev.Timestamp
	s.sessions[sessionID] = st
}

func (s *Store) Get(sessionID string) (SessionStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[sessionID]
	return st, ok
}

func (s *Store) Forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
