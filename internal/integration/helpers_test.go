//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tcKafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/barometer-digital/skyscraper/internal/domain"
)

// startKafka spins up a Kafka container and returns the broker address.
// The container is terminated via t.Cleanup.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	kc, err := tcKafka.Run(ctx, "confluentinc/confluent-local:7.6.0")
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = kc.Terminate(ctx) })

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err, "get kafka brokers")
	return brokers[0]
}

// createTopics creates single-partition topics on the cluster controller.
func createTopics(t *testing.T, broker string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer func() { _ = conn.Close() }()

	controller, err := conn.Controller()
	require.NoError(t, err, "get controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer func() { _ = controllerConn.Close() }()

	configs := make([]kafkago.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		configs = append(configs, kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}
	if err := controllerConn.CreateTopics(configs...); err != nil && !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("create topics: %v", err)
	}
}

// postFrame builds one JSON frame carrying a single post create.
func postFrame(t *testing.T, repo, rkey, text string) []byte {
	t.Helper()
	blocks, err := json.Marshal([]domain.PostRecord{{
		Type:      domain.PostCollection,
		Text:      text,
		CreatedAt: "2024-05-01T10:30:00.000Z",
	}})
	require.NoError(t, err, "marshal blocks")
	frame, err := json.Marshal(domain.Commit{
		Repo:   repo,
		Ops:    []domain.RepoOp{{Action: domain.ActionCreate, Path: domain.PostCollection + "/" + rkey}},
		Blocks: blocks,
	})
	require.NoError(t, err, "marshal frame")
	return frame
}

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
