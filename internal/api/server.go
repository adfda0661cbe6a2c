package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"socsim/internal/config"
	"socsim/internal/model"
	"socsim/internal/scoring"
	"socsim/internal/session"
	"socsim/internal/stats"
	"socsim/internal/storage"
	"socsim/internal/threat"
)

// Server exposes the training surface over HTTP. Authentication and user
// accounts are handled upstream; this layer only marshals requests into the
// simulation core.
type Server struct {
	cfg      *config.Manager
	sessions *session.Manager
	store    storage.Store
	scorer   *threat.Scorer
	stats    *stats.Store
	logger   *slog.Logger
}

func Start(ctx context.Context, cfg *config.Manager, sessions *session.Manager,
	store storage.Store, scorer *threat.Scorer, statsStore *stats.Store, logger *slog.Logger) *http.Server {
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		store:    store,
		scorer:   scorer,
		stats:    statsStore,
		logger:   logger,
	}

	httpServer := &http.Server{Addr: current.Addr, Handler: s.routes()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/simulations", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/simulations/{id}", s.handleStop).Methods(http.MethodDelete)
	r.HandleFunc("/api/v1/simulations/{id}", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/logs", s.handleLogs).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/analyze", s.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/decisions", s.handleDecision).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/scores/{id}", s.handleScore).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/reports/{id}", s.handleReport).Methods(http.MethodGet)
	return r
}

type startRequest struct {
	Scenario   string `json:"scenario"`
	Difficulty string `json:"difficulty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := s.sessions.Start(r.Context(), req.Scenario, req.Difficulty)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"status":     model.StatusRunning,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	score, err := s.sessions.Stop(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sc, diff, startedAt, ok := s.sessions.Status(id)
	if !ok {
		// A stopped session has no registry entry but keeps its score.
		score, err := s.store.GetScore(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			s.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": id,
			"status":     model.StatusCompleted,
			"score":      score,
		})
		return
	}
	resp := map[string]any{
		"session_id": id,
		"status":     model.StatusRunning,
		"scenario":   sc,
		"difficulty": diff,
		"started_at": startedAt.Format(time.RFC3339),
	}
	if s.stats != nil {
		if live, found := s.stats.Get(id); found {
			resp["stream"] = live
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("simulation_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "simulation_id is required")
		return
	}
	limit := s.cfg.Get().API.LogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	var severity *model.Severity
	if v := r.URL.Query().Get("severity"); v != "" {
		sev, ok := model.ParseSeverity(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown severity")
			return
		}
		severity = &sev
	}
	events, err := s.store.ListEvents(r.Context(), sessionID, limit, severity)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type analyzeRequest struct {
	LogID      string `json:"log_id"`
	EventType  string `json:"event_type"`
	RawPayload string `json:"raw_payload"`
	SourceIP   string `json:"source_ip"`
	SourcePort int    `json:"source_port"`
	DestPort   int    `json:"dest_port"`
	Protocol   string `json:"protocol"`
	Severity   string `json:"severity"`
}

type analyzeResponse struct {
	LogID          string            `json:"log_id"`
	ThreatLabel    model.ThreatLabel `json:"threat_label"`
	AnomalyScore   float64           `json:"anomaly_score"`
	IsAnomaly      bool              `json:"is_anomaly"`
	Recommendation string            `json:"recommendation"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sev, _ := model.ParseSeverity(req.Severity)
	enr := s.scorer.Enrich(model.Event{
		EventType:  req.EventType,
		RawPayload: req.RawPayload,
		SourceIP:   req.SourceIP,
		SourcePort: req.SourcePort,
		DestPort:   req.DestPort,
		Protocol:   model.Protocol(req.Protocol),
		Severity:   sev,
	})
	writeJSON(w, http.StatusOK, analyzeResponse{
		LogID:          req.LogID,
		ThreatLabel:    enr.ThreatLabel,
		AnomalyScore:   enr.AnomalyScore,
		IsAnomaly:      enr.IsAnomaly,
		Recommendation: threat.Recommendation(enr.ThreatLabel),
	})
}

type decisionRequest struct {
	SimulationID string  `json:"simulation_id"`
	LogID        string  `json:"log_id"`
	AnalystLabel string  `json:"analyst_label"`
	CorrectLabel string  `json:"correct_label"`
	TimeTakenSec float64 `json:"time_taken_sec"`
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	correct, err := s.sessions.SubmitDecision(r.Context(), req.SimulationID, req.LogID,
		req.AnalystLabel, req.CorrectLabel, req.TimeTakenSec)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "recorded",
		"correct": correct,
	})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	score, err := s.store.GetScore(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "score not found, has the simulation ended?")
			return
		}
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	score, err := s.store.GetScore(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not available yet")
			return
		}
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":  score.SessionID,
		"grade":       score.Grade,
		"final_score": score.FinalScore,
		"technical_breakdown": map[string]any{
			"detection_accuracy":  score.DetectionAccuracy,
			"false_positive_rate": score.FalsePositiveRate,
			"response_speed_sec":  score.ResponseSpeed,
			"correct_escalations": score.CorrectEscalations,
			"technical_score":     score.TechnicalScore,
		},
		"pressure_breakdown": map[string]any{
			"avg_decision_time_sec": score.AvgDecisionTimeSec,
			"decision_accuracy":     score.DecisionAccuracy,
			"stress_factor":         score.StressFactor,
			"pressure_score":        score.PressureScore,
		},
		"recommendations": scoring.Recommendations(score),
		"scored_at":       score.ScoredAt.Format(time.RFC3339),
	})
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		if s.logger != nil {
			s.logger.Error("request failed", "err", err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
