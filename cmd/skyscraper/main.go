package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	firehoseadapter "github.com/barometer-digital/skyscraper/internal/adapter/firehose"
	httpadapter "github.com/barometer-digital/skyscraper/internal/adapter/http"
	"github.com/barometer-digital/skyscraper/internal/adapter/identity"
	"github.com/barometer-digital/skyscraper/internal/adapter/jsonl"
	kafkaadapter "github.com/barometer-digital/skyscraper/internal/adapter/kafka"
	"github.com/barometer-digital/skyscraper/internal/collector"
	"github.com/barometer-digital/skyscraper/internal/config"
	"github.com/barometer-digital/skyscraper/internal/domain"
	"github.com/barometer-digital/skyscraper/internal/observability"
)

type options struct {
	duration time.Duration
	limit    int64
	output   string
	verbose  bool
	workers  int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "skyscraper",
		Short: "Collect posts from the Bluesky firehose",
		Long: `skyscraper subscribes to a Bluesky repo event stream, extracts feed posts
concurrently, and appends them to a JSONL file until a time limit, a post
limit, or an interrupt ends the run.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.DurationVarP(&opts.duration, "duration", "t", 0, "how long to collect (e.g. 90s, 5m); 0 means no time limit")
	flags.Int64VarP(&opts.limit, "limit", "n", 0, "how many posts to collect; 0 means no post limit")
	flags.StringVarP(&opts.output, "output", "o", "", "output file (default bluesky_posts_<timestamp>.jsonl)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every saved post")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "processing workers (overrides WORKERS)")
	cmd.MarkFlagsMutuallyExclusive("duration", "limit")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	if opts.duration < 0 {
		return errors.New("duration must not be negative")
	}
	if opts.limit < 0 {
		return errors.New("limit must not be negative")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	outputPath := opts.output
	if outputPath == "" {
		outputPath = fmt.Sprintf("bluesky_posts_%s.jsonl", time.Now().Format("20060102_150405"))
	}
	fileWriter, err := jsonl.NewWriter(outputPath)
	if err != nil {
		return err
	}

	writers := []collector.RecordWriter{fileWriter}
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaSinkTopic != "" {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		writers = append(writers, kafkaWriter)
	}

	var source collector.Source
	var kafkaReader *kafkaadapter.Reader
	switch cfg.StreamSource {
	case config.SourceKafka:
		kafkaReader = kafkaadapter.NewReader(cfg, logger)
		source = kafkaReader
	default:
		source = firehoseadapter.NewClient(cfg.FirehoseURL, logger)
	}

	var newResolver func() domain.HandleResolver
	if cfg.ResolveHandles {
		newResolver = func() domain.HandleResolver {
			return identity.NewClient(cfg.PLCDirectoryURL, cfg.ResolverTimeout, cfg.ResolverCacheSize, metrics, logger)
		}
	}

	col, err := collector.New(collector.Config{
		Source:              source,
		Decoder:             domain.JSONCodec{},
		NewResolver:         newResolver,
		Writers:             writers,
		Workers:             cfg.Workers,
		QueueSize:           cfg.QueueSize,
		Duration:            opts.duration,
		PostLimit:           opts.limit,
		PollInterval:        cfg.PollInterval,
		MaxReconnects:       cfg.MaxReconnects,
		ReconnectBackoff:    cfg.ReconnectBackoff,
		ReconnectBackoffMax: cfg.ReconnectBackoffMax,
		ShutdownTimeout:     cfg.ShutdownTimeout,
		Logger:              logger,
		Metrics:             metrics,
	})
	if err != nil {
		return err
	}

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, col, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, runErr := col.Run(runCtx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if err := fileWriter.Close(); err != nil {
		logger.Error("output file close error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if kafkaReader != nil {
		if err := kafkaReader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	fmt.Printf("Collected %d posts in %.2f seconds (%.1f posts/sec)\n",
		result.Count, result.Elapsed.Seconds(), result.Rate)
	fmt.Printf("Output written to %s\n", outputPath)
	return nil
}
