package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/barometer-digital/skyscraper/internal/config"
	"github.com/barometer-digital/skyscraper/internal/domain"
)

// Writer publishes collected posts to a Kafka topic.
// It implements collector.RecordWriter.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Append publishes one post, keyed by URI so a compacted topic keeps the
// newest version of each post.
func (w *Writer) Append(ctx context.Context, post domain.Post) error {
	msg, err := mapPostToMessage(post)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func mapPostToMessage(post domain.Post) (kafkago.Message, error) {
	value, err := json.Marshal(post)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize post: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(post.URI),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "author", Value: []byte(post.Author)},
		},
	}, nil
}
