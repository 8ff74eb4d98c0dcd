package kafka

import (
	"context"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/barometer-digital/skyscraper/internal/config"
	"github.com/barometer-digital/skyscraper/internal/domain"
)

// Reader consumes raw stream frames mirrored into a Kafka topic.
// It implements collector.Source.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a Kafka consumer for the configured source topic and group.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaSourceTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10 MB
	})
	return &Reader{reader: r, logger: logger}
}

// Subscribe delivers each mirrored frame to emit until ctx is cancelled or
// the brokers become unreachable. Offsets commit as messages are read;
// collection tolerates the resulting at-least-once delivery because stores
// are keyed by URI.
func (r *Reader) Subscribe(ctx context.Context, emit func(domain.RawMessage) error) error {
	r.logger.Info("consuming mirrored stream", "topic", r.reader.Config().Topic)

	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if err := emit(msg.Value); err != nil {
			return err
		}
	}
}

func (r *Reader) Close() error {
	return r.reader.Close()
}
