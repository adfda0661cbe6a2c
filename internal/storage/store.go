package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"socsim/internal/config"
	"socsim/internal/model"
)

// ErrNotFound is returned when a requested score does not exist.
var ErrNotFound = errors.New("not found")

// Store is the external log store: enriched events and final scores, with the
// aggregate queries the scoring engine needs at session stop.
type Store interface {
	Init(ctx context.Context) error
	Close() error

	InsertEvent(ctx context.Context, ev model.Event) error
	GetEvent(ctx context.Context, id string) (model.Event, error)
	ListEvents(ctx context.Context, sessionID string, limit int, severity *model.Severity) ([]model.Event, error)
	CountEvents(ctx context.Context, sessionID string) (int, error)
	CountAnomalies(ctx context.Context, sessionID string) (int, error)
	CountCritical(ctx context.Context, sessionID string) (int, error)

	SaveScore(ctx context.Context, score model.Score) error
	GetScore(ctx context.Context, sessionID string) (model.Score, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

// GatherStats runs the three aggregate counts for a session.
func GatherStats(ctx context.Context, s Store, sessionID string) (model.StreamStats, error) {
	total, err := s.CountEvents(ctx, sessionID)
	if err != nil {
		return model.StreamStats{}, err
	}
	anomalies, err := s.CountAnomalies(ctx, sessionID)
	if err != nil {
		return model.StreamStats{}, err
	}
	critical, err := s.CountCritical(ctx, sessionID)
	if err != nil {
		return model.StreamStats{}, err
	}
	return model.StreamStats{
		TotalEvents:    total,
		TotalAnomalies: anomalies,
		TotalCritical:  critical,
	}, nil
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
