//go:build integration

package integration_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/barometer-digital/skyscraper/internal/adapter/jsonl"
	kafkaadapter "github.com/barometer-digital/skyscraper/internal/adapter/kafka"
	"github.com/barometer-digital/skyscraper/internal/collector"
	"github.com/barometer-digital/skyscraper/internal/config"
	"github.com/barometer-digital/skyscraper/internal/domain"
)

// End to end against a real broker: frames mirrored into Kafka flow
// through the collector, land in the JSONL file, and the collected posts
// are published back out to the sink topic.
func TestCollectorFromMirroredStream_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	sourceTopic := "firehose-frames"
	sinkTopic := "collected-posts"
	createTopics(t, broker, sourceTopic, sinkTopic)

	cfg := &config.Config{
		StreamSource:     config.SourceKafka,
		KafkaBrokers:     []string{broker},
		KafkaSourceTopic: sourceTopic,
		KafkaSinkTopic:   sinkTopic,
		KafkaGroupID:     fmt.Sprintf("skyscraper-it-%d", time.Now().UnixNano()),
	}

	producer := &kafkago.Writer{
		Addr:     kafkago.TCP(broker),
		Topic:    sourceTopic,
		Balancer: &kafkago.LeastBytes{},
	}
	defer func() { _ = producer.Close() }()

	const total = 10
	frames := make([]kafkago.Message, 0, total)
	for i := 0; i < total; i++ {
		frames = append(frames, kafkago.Message{
			Value: postFrame(t, "did:plc:integration", fmt.Sprintf("r%d", i), fmt.Sprintf("integration post %d", i)),
		})
	}
	require.NoError(t, producer.WriteMessages(ctx, frames...))

	outputPath := filepath.Join(t.TempDir(), "posts.jsonl")
	fileWriter, err := jsonl.NewWriter(outputPath)
	require.NoError(t, err)
	defer func() { _ = fileWriter.Close() }()

	sinkWriter := kafkaadapter.NewWriter(cfg, discardLogger())
	defer func() { _ = sinkWriter.Close() }()

	source := kafkaadapter.NewReader(cfg, discardLogger())
	defer func() { _ = source.Close() }()

	col, err := collector.New(collector.Config{
		Source:       source,
		Decoder:      domain.JSONCodec{},
		Writers:      []collector.RecordWriter{fileWriter, sinkWriter},
		Workers:      2,
		QueueSize:    100,
		PostLimit:    total,
		PollInterval: 100 * time.Millisecond,
		Logger:       discardLogger(),
	})
	require.NoError(t, err)

	result, err := col.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(total), result.Count)
	require.Len(t, result.Posts, total)
	require.Equal(t, collector.ReasonPostLimit, result.Reason)

	published := readPublishedPosts(ctx, t, broker, sinkTopic, total)
	for uri, post := range result.Posts {
		got, ok := published[uri]
		require.True(t, ok, "post %s missing from sink topic", uri)
		require.Equal(t, post, got)
	}

	lines := readOutputFile(t, outputPath)
	require.Len(t, lines, total)
	for _, post := range lines {
		require.Contains(t, result.Posts, post.URI)
	}
}

func readPublishedPosts(ctx context.Context, t *testing.T, broker, topic string, n int) map[string]domain.Post {
	t.Helper()
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     fmt.Sprintf("skyscraper-verify-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	readCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()

	posts := make(map[string]domain.Post, n)
	for len(posts) < n {
		msg, err := reader.ReadMessage(readCtx)
		require.NoError(t, err, "read published post")

		var post domain.Post
		require.NoError(t, json.Unmarshal(msg.Value, &post))
		require.Equal(t, post.URI, string(msg.Key))
		posts[post.URI] = post
	}
	return posts
}

func readOutputFile(t *testing.T, path string) []domain.Post {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	var posts []domain.Post
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var post domain.Post
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &post))
		posts = append(posts, post)
	}
	require.NoError(t, scanner.Err())
	return posts
}
