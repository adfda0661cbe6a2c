package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"socsim/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/socsim?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			source_ip TEXT NOT NULL,
			dest_ip TEXT NOT NULL,
			source_port INTEGER NOT NULL,
			dest_port INTEGER NOT NULL,
			protocol TEXT NOT NULL,
			event_type TEXT NOT NULL,
			raw_payload TEXT NOT NULL,
			severity TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			anomaly_score DOUBLE PRECISION NOT NULL,
			is_anomaly BOOLEAN NOT NULL,
			threat_label TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session_ts ON events(session_id, ts)`,
		`CREATE TABLE IF NOT EXISTS scores (
			session_id TEXT PRIMARY KEY,
			detection_accuracy DOUBLE PRECISION NOT NULL,
			false_positive_rate DOUBLE PRECISION NOT NULL,
			response_speed DOUBLE PRECISION NOT NULL,
			correct_escalations INTEGER NOT NULL,
			technical_score DOUBLE PRECISION NOT NULL,
			avg_decision_time DOUBLE PRECISION NOT NULL,
			decision_accuracy DOUBLE PRECISION NOT NULL,
			stress_factor DOUBLE PRECISION NOT NULL,
			pressure_score DOUBLE PRECISION NOT NULL,
			final_score DOUBLE PRECISION NOT NULL,
			grade TEXT NOT NULL,
			feedback TEXT NOT NULL,
			scored_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) InsertEvent(ctx context.Context, ev model.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, session_id, source_ip, dest_ip, source_port, dest_port,
			protocol, event_type, raw_payload, severity, ts, anomaly_score, is_anomaly, threat_label)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		ev.ID,
		ev.SessionID,
		ev.SourceIP,
		ev.DestIP,
		ev.SourcePort,
		ev.DestPort,
		string(ev.Protocol),
		ev.EventType,
		ev.RawPayload,
		string(ev.Severity),
		ev.Timestamp.UTC(),
		ev.AnomalyScore,
		ev.IsAnomaly,
		string(ev.ThreatLabel),
	)
	return err
}

func (s *postgresStore) GetEvent(ctx context.Context, id string) (model.Event, error) {
	var ev model.Event
	var proto, severityStr, label string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, source_ip, dest_ip, source_port, dest_port,
			protocol, event_type, raw_payload, severity, ts, anomaly_score, is_anomaly, threat_label
		FROM events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.SessionID, &ev.SourceIP, &ev.DestIP, &ev.SourcePort,
			&ev.DestPort, &proto, &ev.EventType, &ev.RawPayload, &severityStr,
			&ev.Timestamp, &ev.AnomalyScore, &ev.IsAnomaly, &label)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	if err != nil {
		return model.Event{}, err
	}
	ev.Protocol = model.Protocol(proto)
	ev.Severity = model.Severity(severityStr)
	ev.ThreatLabel = model.ThreatLabel(label)
	return ev, nil
}

func (s *postgresStore) ListEvents(ctx context.Context, sessionID string, limit int, severity *model.Severity) ([]model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, session_id, source_ip, dest_ip, source_port, dest_port,
		protocol, event_type, raw_payload, severity, ts, anomaly_score, is_anomaly, threat_label
		FROM events WHERE session_id = $1`
	args := []any{sessionID}
	if severity != nil {
		query += ` AND severity = $2 ORDER BY ts DESC LIMIT $3`
		args = append(args, string(*severity), limit)
	} else {
		query += ` ORDER BY ts DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Event, 0)
	for rows.Next() {
		var ev model.Event
		var proto, severityStr, label string
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.SourceIP, &ev.DestIP,
			&ev.SourcePort, &ev.DestPort, &proto, &ev.EventType, &ev.RawPayload,
			&severityStr, &ev.Timestamp, &ev.AnomalyScore, &ev.IsAnomaly, &label); err != nil {
			return nil, err
		}
		ev.Protocol = model.Protocol(proto)
		ev.Severity = model.Severity(severityStr)
		ev.ThreatLabel = model.ThreatLabel(label)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *postgresStore) CountEvents(ctx context.Context, sessionID string) (int, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM events WHERE session_id = $1`, sessionID)
}

func (s *postgresStore) CountAnomalies(ctx context.Context, sessionID string) (int, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM events WHERE session_id = $1 AND is_anomaly`, sessionID)
}

func (s *postgresStore) CountCritical(ctx context.Context, sessionID string) (int, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM events WHERE session_id = $1 AND severity = 'critical'`, sessionID)
}

func (s *postgresStore) countWhere(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *postgresStore) SaveScore(ctx context.Context, score model.Score) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (session_id, detection_accuracy, false_positive_rate,
			response_speed, correct_escalations, technical_score, avg_decision_time,
			decision_accuracy, stress_factor, pressure_score, final_score, grade, feedback, scored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (session_id) DO NOTHING`,
		score.SessionID,
		score.DetectionAccuracy,
		score.FalsePositiveRate,
		score.ResponseSpeed,
		score.CorrectEscalations,
		score.TechnicalScore,
		score.AvgDecisionTimeSec,
		score.DecisionAccuracy,
		score.StressFactor,
		score.PressureScore,
		score.FinalScore,
		score.Grade,
		score.Feedback,
		score.ScoredAt.UTC(),
	)
	return err
}

func (s *postgresStore) GetScore(ctx context.Context, sessionID string) (model.Score, error) {
	var sc model.Score
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, detection_accuracy, false_positive_rate, response_speed,
			correct_escalations, technical_score, avg_decision_time, decision_accuracy,
			stress_factor, pressure_score, final_score, grade, feedback, scored_at
		FROM scores WHERE session_id = $1`, sessionID).
		Scan(&sc.SessionID, &sc.DetectionAccuracy, &sc.FalsePositiveRate,
			&sc.ResponseSpeed, &sc.CorrectEscalations, &sc.TechnicalScore,
			&sc.AvgDecisionTimeSec, &sc.DecisionAccuracy, &sc.StressFactor,
			&sc.PressureScore, &sc.FinalScore, &sc.Grade, &sc.Feedback, &sc.ScoredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Score{}, ErrNotFound
	}
	if err != nil {
		return model.Score{}, err
	}
	return sc, nil
}
