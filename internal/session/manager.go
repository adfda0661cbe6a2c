package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"socsim/internal/config"
	"socsim/internal/generator"
	"socsim/internal/ledger"
	"socsim/internal/model"
	"socsim/internal/scoring"
	"socsim/internal/stats"
	"socsim/internal/storage"
	"socsim/internal/threat"
)

var (
	// ErrNotFound covers unknown and already-stopped sessions.
	ErrNotFound = errors.New("session not found")
	// ErrValidation marks malformed start/decision input, rejected before
	// any state change.
	ErrValidation = errors.New("validation failed")
)

type running struct {
	scenario   model.Scenario
	difficulty model.Difficulty
	startedAt  time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

// Manager owns the session lifecycle: it registers one generator task per
// active session, records analyst decisions while the session runs, and
// computes the final score at stop.
type Manager struct {
	cfg    *config.Manager
	scorer *threat.Scorer
	store  storage.Store
	ledger *ledger.Ledger
	stats  *stats.Store
	engine *scoring.Engine
	feed   generator.EventObserver
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]*running
}

func NewManager(cfg *config.Manager, scorer *threat.Scorer, store storage.Store,
	decisionLedger *ledger.Ledger, statsStore *stats.Store, feed generator.EventObserver,
	logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		scorer: scorer,
		store:  store,
		ledger: decisionLedger,
		stats:  statsStore,
		engine: scoring.NewEngine(),
		feed:   feed,
		logger: logger,
		active: make(map[string]*running),
	}
}

// Start validates the scenario and difficulty, registers a new session and
// launches its background generator.
func (m *Manager) Start(ctx context.Context, scenarioName, difficultyName string) (string, error) {
	sc, ok := model.ParseScenario(scenarioName)
	if !ok {
		return "", fmt.Errorf("%w: unknown scenario %q", ErrValidation, scenarioName)
	}
	diff, ok := model.ParseDifficulty(difficultyName)
	if !ok {
		return "", fmt.Errorf("%w: unknown difficulty %q", ErrValidation, difficultyName)
	}

	simCfg := m.cfg.Get().Simulation
	id := uuid.NewString()

	observers := []generator.EventObserver{}
	if m.stats != nil {
		observers = append(observers, m.stats)
	}
	if m.feed != nil {
		observers = append(observers, m.feed)
	}
	gen := generator.New(id, sc, diff, simCfg.TickInterval, m.scorer, m.store, m.logger, observers...)
	gen.SetHoneypotIP(simCfg.HoneypotIP)
	gen.SetInternalHosts(simCfg.InternalHosts)

	genCtx, cancel := context.WithCancel(context.Background())
	r := &running{
		scenario:   sc,
		difficulty: diff,
		startedAt:  time.Now().UTC(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	m.mu.Lock()
	m.active[id] = r
	m.mu.Unlock()

	go func() {
		defer close(r.done)
		gen.Run(genCtx)
	}()

	if m.logger != nil {
		m.logger.Info("session started", "session_id", id, "scenario", sc, "difficulty", diff)
	}
	return id, nil
}

// Stop cancels the session's generator, waits for it to finish, then scores
// the session from the log store aggregates and the decision ledger. Stopping
// an unknown or already-stopped session returns ErrNotFound, never crashes.
func (m *Manager) Stop(ctx context.Context, sessionID string) (model.Score, error) {
	m.mu.Lock()
	r, ok := m.active[sessionID]
	if ok {
		delete(m.active, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return model.Score{}, ErrNotFound
	}

	r.cancel()
	<-r.done

	streamStats, err := storage.GatherStats(ctx, m.store, sessionID)
	if err != nil {
		if m.logger != nil {
			m.logger.Error("stat aggregation failed, scoring with zero counts", "session_id", sessionID, "err", err)
		}
		streamStats = model.StreamStats{}
	}
	decisions := m.ledger.Drain(sessionID)
	score := m.engine.Compute(sessionID, streamStats, decisions, time.Now())

	if err := m.store.SaveScore(ctx, score); err != nil {
		return model.Score{}, fmt.Errorf("persist score: %w", err)
	}
	if m.stats != nil {
		m.stats.Forget(sessionID)
	}
	if m.logger != nil {
		m.logger.Info("session stopped",
			"session_id", sessionID,
			"final_score", score.FinalScore,
			"grade", score.Grade,
			"decisions", len(decisions),
		)
	}
	return score, nil
}

func (m *Manager) IsActive(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[sessionID]
	return ok
}

// Status reports scenario, difficulty and start time for a running session.
func (m *Manager) Status(sessionID string) (model.Scenario, model.Difficulty, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.active[sessionID]
	if !ok {
		return "", "", time.Time{}, false
	}
	return r.scenario, r.difficulty, r.startedAt, true
}

// SubmitDecision appends one analyst decision to the ledger. Correctness is a
// case-insensitive match against the stored event's threat label when the
// event can be resolved, falling back to the caller-supplied ground truth.
// Decisions are only accepted while the session is running.
func (m *Manager) SubmitDecision(ctx context.Context, sessionID, logID, analystLabel, correctLabel string, timeTakenSec float64) (bool, error) {
	if analystLabel == "" {
		return false, fmt.Errorf("%w: analyst_label is required", ErrValidation)
	}
	if timeTakenSec < 0 {
		return false, fmt.Errorf("%w: time_taken_sec must be >= 0", ErrValidation)
	}
	if !m.IsActive(sessionID) {
		return false, ErrNotFound
	}

	truth := correctLabel
	if logID != "" {
		if ev, err := m.store.GetEvent(ctx, logID); err == nil && ev.ThreatLabel != "" {
			truth = string(ev.ThreatLabel)
		}
	}
	if truth == "" {
		return false, fmt.Errorf("%w: no ground truth label available", ErrValidation)
	}
	correct := strings.EqualFold(analystLabel, truth)

	// Re-check and append under the registry lock: Stop removes the session
	// under the same lock before draining, so a decision is either visible to
	// the drain or rejected here, never stranded in the ledger.
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[sessionID]; !ok {
		return false, ErrNotFound
	}
	m.ledger.Record(sessionID, model.DecisionRecord{
		LogID:        logID,
		AnalystLabel: analystLabel,
		TimeTakenSec: timeTakenSec,
		Correct:      correct,
	})
	return correct, nil
}

// StopAll cancels every running session without scoring. Used at shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make([]*running, 0, len(m.active))
	for id, r := range m.active {
		sessions = append(sessions, r)
		delete(m.active, id)
	}
	m.mu.Unlock()
	for _, r := range sessions {
		r.cancel()
		<-r.done
	}
}
