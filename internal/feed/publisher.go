package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"socsim/internal/config"
	"socsim/internal/model"
)

// Publisher mirrors every enriched event onto a Kafka topic so external
// dashboards can tail the live attack feed. Publishing is best-effort: a
// broker error is logged and dropped, never surfaced to the generator.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewPublisher(cfg config.FeedConfig, logger *slog.Logger) *Publisher {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("feed publisher disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("feed publisher enabled", "brokers", cfg.Brokers, "topic", cfg.Topic)
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Observe implements generator.EventObserver.
func (p *Publisher) Observe(sessionID string, ev model.Event) {
	if p == nil || p.writer == nil {
		return
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(sessionID),
		Value: value,
	})
	if err != nil && p.logger != nil {
		p.logger.Warn("feed publish failed", "session_id", sessionID, "err", err)
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
