package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Stream source kinds.
const (
	SourceFirehose = "firehose"
	SourceKafka    = "kafka"
)

// Config holds all collector settings, populated from environment variables.
type Config struct {
	StreamSource string
	FirehoseURL  string

	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	Workers      int
	QueueSize    int
	PollInterval time.Duration

	// Handle resolution against the PLC directory.
	PLCDirectoryURL   string
	ResolveHandles    bool
	ResolverTimeout   time.Duration
	ResolverCacheSize int

	// Reconnect policy for unexpected stream disconnects.
	MaxReconnects       int
	ReconnectBackoff    time.Duration
	ReconnectBackoffMax time.Duration
}

// Load reads configuration from the environment (and a .env file when
// present), applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}
	resolverTimeout, err := parsePositiveDuration("RESOLVER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	reconnectBackoff, err := parsePositiveDuration("RECONNECT_BACKOFF", "1s")
	if err != nil {
		return nil, err
	}
	reconnectBackoffMax, err := parsePositiveDuration("RECONNECT_BACKOFF_MAX", "30s")
	if err != nil {
		return nil, err
	}

	workers, err := parseIntInRange("WORKERS", 4, 1, 128)
	if err != nil {
		return nil, err
	}
	queueSize, err := parseIntInRange("QUEUE_SIZE", 10000, 1, 1000000)
	if err != nil {
		return nil, err
	}
	resolverCacheSize, err := parseIntInRange("RESOLVER_CACHE_SIZE", 1000, 1, 1000000)
	if err != nil {
		return nil, err
	}
	maxReconnects, err := parseIntInRange("MAX_RECONNECTS", 10, 0, 1000000)
	if err != nil {
		return nil, err
	}

	resolveHandles := true
	if v := os.Getenv("RESOLVE_HANDLES"); v != "" {
		resolveHandles = v == "true"
	}

	cfg := &Config{
		StreamSource: envOrDefault("STREAM_SOURCE", SourceFirehose),
		FirehoseURL:  envOrDefault("FIREHOSE_URL", "wss://bsky.network/xrpc/com.atproto.sync.subscribeRepos"),

		KafkaBrokers:     parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: envOrDefault("KAFKA_SOURCE_TOPIC", "firehose-frames"),
		KafkaSinkTopic:   os.Getenv("KAFKA_SINK_TOPIC"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "skyscraper"),

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Workers:      workers,
		QueueSize:    queueSize,
		PollInterval: pollInterval,

		PLCDirectoryURL:   envOrDefault("PLC_DIRECTORY_URL", "https://plc.directory"),
		ResolveHandles:    resolveHandles,
		ResolverTimeout:   resolverTimeout,
		ResolverCacheSize: resolverCacheSize,

		MaxReconnects:       maxReconnects,
		ReconnectBackoff:    reconnectBackoff,
		ReconnectBackoffMax: reconnectBackoffMax,
	}

	switch cfg.StreamSource {
	case SourceFirehose:
		if cfg.FirehoseURL == "" {
			return nil, errors.New("FIREHOSE_URL is required")
		}
	case SourceKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when STREAM_SOURCE is kafka")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required when STREAM_SOURCE is kafka")
		}
	default:
		return nil, errors.New("invalid STREAM_SOURCE: must be firehose or kafka")
	}

	if cfg.KafkaSinkTopic != "" && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_SINK_TOPIC is set")
	}
	if cfg.ReconnectBackoffMax < cfg.ReconnectBackoff {
		return nil, errors.New("RECONNECT_BACKOFF_MAX must not be less than RECONNECT_BACKOFF")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseIntInRange(key string, fallback, min, max int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s: must be %d-%d", key, min, max)
	}
	return n, nil
}

func parseBrokers(value string) []string {
	parts := strings.Split(value, ",")
	brokers := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}
