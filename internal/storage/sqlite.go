package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"socsim/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:socsim.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
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
			ts TEXT NOT NULL,
			anomaly_score REAL NOT NULL,
			is_anomaly INTEGER NOT NULL,
			threat_label TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session_ts ON events(session_id, ts)`,
		`CREATE TABLE IF NOT EXISTS scores (
			session_id TEXT PRIMARY KEY,
			detection_accuracy REAL NOT NULL,
			false_positive_rate REAL NOT NULL,
			response_speed REAL NOT NULL,
			correct_escalations INTEGER NOT NULL,
			technical_score REAL NOT NULL,
			avg_decision_time REAL NOT NULL,
			decision_accuracy REAL NOT NULL,
			stress_factor REAL NOT NULL,
			pressure_score REAL NOT NULL,
			final_score REAL NOT NULL,
			grade TEXT NOT NULL,
			feedback TEXT NOT NULL,
			scored_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) InsertEvent(ctx context.Context, ev model.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, session_id, source_ip, dest_ip, source_port, dest_port,
			protocol, event_type, raw_payload, severity, ts, anomaly_score, is_anomaly, threat_label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
		ev.AnomalyScore,
		boolToInt(ev.IsAnomaly),
		string(ev.ThreatLabel),
	)
	return err
}

func (s *sqliteStore) GetEvent(ctx context.Context, id string) (model.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, source_ip, dest_ip, source_port, dest_port,
			protocol, event_type, raw_payload, severity, ts, anomaly_score, is_anomaly, threat_label
		FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	return ev, err
}

func (s *sqliteStore) ListEvents(ctx context.Context, sessionID string, limit int, severity *model.Severity) ([]model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, session_id, source_ip, dest_ip, source_port, dest_port,
		protocol, event_type, raw_payload, severity, ts, anomaly_score, is_anomaly, threat_label
		FROM events WHERE session_id = ?`
	args := []any{sessionID}
	if severity != nil {
		query += ` AND severity = ?`
		args = append(args, string(*severity))
	}
	query += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *sqliteStore) CountEvents(ctx context.Context, sessionID string) (int, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID)
}

func (s *sqliteStore) CountAnomalies(ctx context.Context, sessionID string) (int, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM events WHERE session_id = ? AND is_anomaly = 1`, sessionID)
}

func (s *sqliteStore) CountCritical(ctx context.Context, sessionID string) (int, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM events WHERE session_id = ? AND severity = 'critical'`, sessionID)
}

func (s *sqliteStore) countWhere(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *sqliteStore) SaveScore(ctx context.Context, score model.Score) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO scores (session_id, detection_accuracy, false_positive_rate,
			response_speed, correct_escalations, technical_score, avg_decision_time,
			decision_accuracy, stress_factor, pressure_score, final_score, grade, feedback, scored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
		score.ScoredAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) GetScore(ctx context.Context, sessionID string) (model.Score, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, detection_accuracy, false_positive_rate, response_speed,
			correct_escalations, technical_score, avg_decision_time, decision_accuracy,
			stress_factor, pressure_score, final_score, grade, feedback, scored_at
		FROM scores WHERE session_id = ?`, sessionID)
	return scanScore(row)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvents(rows *sql.Rows) ([]model.Event, error) {
	out := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanEvent(r rowScanner) (model.Event, error) {
	var ev model.Event
	var proto, severity, label, ts string
	var isAnomaly int
	err := r.Scan(&ev.ID, &ev.SessionID, &ev.SourceIP, &ev.DestIP, &ev.SourcePort,
		&ev.DestPort, &proto, &ev.EventType, &ev.RawPayload, &severity, &ts,
		&ev.AnomalyScore, &isAnomaly, &label)
	if err != nil {
		return model.Event{}, err
	}
	ev.Protocol = model.Protocol(proto)
	ev.Severity = model.Severity(severity)
	ev.ThreatLabel = model.ThreatLabel(label)
	ev.IsAnomaly = isAnomaly != 0
	ev.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	return ev, nil
}

func scanScore(row *sql.Row) (model.Score, error) {
	var sc model.Score
	var ts string
	err := row.Scan(&sc.SessionID, &sc.DetectionAccuracy, &sc.FalsePositiveRate,
		&sc.ResponseSpeed, &sc.CorrectEscalations, &sc.TechnicalScore,
		&sc.AvgDecisionTimeSec, &sc.DecisionAccuracy, &sc.StressFactor,
		&sc.PressureScore, &sc.FinalScore, &sc.Grade, &sc.Feedback, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Score{}, ErrNotFound
	}
	if err != nil {
		return model.Score{}, err
	}
	sc.ScoredAt, _ = time.Parse(time.RFC3339Nano, ts)
	return sc, nil
}
