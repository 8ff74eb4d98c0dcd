package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/barometer-digital/skyscraper/internal/domain"
	"github.com/barometer-digital/skyscraper/internal/observability"
)

// Decoder turns raw frames into commits and block payloads into records.
// The default wire format is domain.JSONCodec; a binary CAR decoder can
// satisfy the same contract.
type Decoder interface {
	DecodeCommit(raw domain.RawMessage) (*domain.Commit, error)
	DecodeBlocks(blocks []byte) ([]domain.PostRecord, error)
}

// Reasons a collection run ends.
const (
	ReasonInterrupt  = "interrupt"
	ReasonTimeLimit  = "time limit"
	ReasonPostLimit  = "post limit"
	ReasonDisconnect = "disconnect"
)

// Config wires a Collector. Source and Decoder are required; everything
// else has a sensible default.
type Config struct {
	Source      Source
	Decoder     Decoder
	NewResolver func() domain.HandleResolver
	Writers     []RecordWriter

	Workers   int
	QueueSize int

	// Stop conditions. Zero means no limit.
	Duration  time.Duration
	PostLimit int64

	PollInterval        time.Duration
	MaxReconnects       int
	ReconnectBackoff    time.Duration
	ReconnectBackoffMax time.Duration
	ShutdownTimeout     time.Duration

	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Collector runs the collection loop: one producer session feeding a
// bounded queue drained by a pool of workers, supervised until a stop
// condition fires.
type Collector struct {
	source      Source
	decoder     Decoder
	newResolver func() domain.HandleResolver

	workerCount int
	queueSize   int
	duration    time.Duration
	postLimit   int64

	pollInterval        time.Duration
	maxReconnects       int
	reconnectBackoff    time.Duration
	reconnectBackoffMax time.Duration
	shutdownTimeout     time.Duration

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	store    *Store
	sink     *Sink
	progress atomic.Int64
	received atomic.Int64

	started    atomic.Bool
	stopOnce   sync.Once
	stopReason atomic.Value
	cancel     context.CancelFunc
	workers    sync.WaitGroup
}

// Result is the outcome of one collection run.
type Result struct {
	Posts   map[string]domain.Post
	Ordered []domain.Post
	Count   int64
	Frames  int64
	Elapsed time.Duration
	Rate    float64
	Reason  string
}

// New validates cfg and builds a Collector.
func New(cfg Config) (*Collector, error) {
	if cfg.Source == nil {
		return nil, errors.New("collector: source is required")
	}
	if cfg.Decoder == nil {
		return nil, errors.New("collector: decoder is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = time.Second
	}
	if cfg.ReconnectBackoffMax < cfg.ReconnectBackoff {
		cfg.ReconnectBackoffMax = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetricsForTesting()
	}

	c := &Collector{
		source:              cfg.Source,
		decoder:             cfg.Decoder,
		newResolver:         cfg.NewResolver,
		workerCount:         cfg.Workers,
		queueSize:           cfg.QueueSize,
		duration:            cfg.Duration,
		postLimit:           cfg.PostLimit,
		pollInterval:        cfg.PollInterval,
		maxReconnects:       cfg.MaxReconnects,
		reconnectBackoff:    cfg.ReconnectBackoff,
		reconnectBackoffMax: cfg.ReconnectBackoffMax,
		shutdownTimeout:     cfg.ShutdownTimeout,
		clock:               cfg.Clock,
		logger:              cfg.Logger,
		metrics:             cfg.Metrics,
		store:               NewStore(),
	}
	c.sink = &Sink{
		store:    c.store,
		writers:  cfg.Writers,
		progress: &c.progress,
		limit:    cfg.PostLimit,
		onLimit:  func() { c.requestStop(ReasonPostLimit) },
		logger:   c.logger,
		metrics:  c.metrics,
	}
	return c, nil
}

// Ready reports whether at least one frame has arrived from the stream.
func (c *Collector) Ready() bool {
	return c.received.Load() > 0
}

// Progress returns the frames received and posts collected so far. Both
// counters move while the run is in flight, so reads are advisory.
func (c *Collector) Progress() (frames, posts int64) {
	return c.received.Load(), c.progress.Load()
}

// Run executes one collection run: it spawns the workers, supervises
// producer sessions (reconnecting with backoff on unexpected disconnects),
// and returns the collected posts once a stop condition fires. Cancelling
// ctx stops the run gracefully.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, errors.New("collector: already ran")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancel = cancel

	start := c.clock.Now()
	c.metrics.CollectorRunning.Set(1)
	defer c.metrics.CollectorRunning.Set(0)

	c.logger.Info("collection starting",
		"workers", c.workerCount,
		"queue_size", c.queueSize,
		"duration", c.duration,
		"post_limit", c.postLimit,
	)

	queue := make(chan domain.RawMessage, c.queueSize)
	for i := 0; i < c.workerCount; i++ {
		c.workers.Add(1)
		go c.runWorker(runCtx, i, queue)
	}

	var deadline <-chan time.Time
	if c.duration > 0 {
		timer := c.clock.NewTimer(c.duration)
		defer timer.Stop()
		deadline = timer.Chan()
	}

	backoff := c.reconnectBackoff
	attempts := 0
	for {
		receivedBefore := c.received.Load()
		session := c.startProducer(runCtx, queue)

		reason := c.monitor(runCtx, queue, session, deadline)
		if reason != ReasonDisconnect {
			break
		}

		// A session that delivered frames earns a fresh retry budget.
		if c.received.Load() > receivedBefore {
			attempts = 0
			backoff = c.reconnectBackoff
		}
		attempts++
		if attempts > c.maxReconnects {
			c.logger.Error("stream lost", "reconnects", attempts-1)
			c.requestStop(ReasonDisconnect)
			break
		}

		c.metrics.Reconnects.Inc()
		c.logger.Warn("reconnecting to stream",
			"attempt", attempts,
			"max_attempts", c.maxReconnects,
			"backoff", backoff,
		)
		if !sleepWithContext(runCtx, c.clock, backoff) {
			break
		}
		backoff = nextBackoff(backoff, c.reconnectBackoffMax)
	}

	cancel()
	if !waitTimeout(&c.workers, c.shutdownTimeout) {
		c.logger.Warn("workers did not stop within shutdown timeout")
	}

	elapsed := c.clock.Since(start)
	count := c.progress.Load()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(count) / elapsed.Seconds()
	}

	posts, ordered := c.store.Snapshot()
	result := &Result{
		Posts:   posts,
		Ordered: ordered,
		Count:   count,
		Frames:  c.received.Load(),
		Elapsed: elapsed,
		Rate:    rate,
		Reason:  c.reason(),
	}

	c.logger.Info("collection complete",
		"posts", result.Count,
		"unique", len(result.Posts),
		"frames", result.Frames,
		"elapsed", result.Elapsed.Round(time.Millisecond),
		"rate", result.Rate,
		"reason", result.Reason,
	)
	return result, nil
}

// monitor supervises one producer session and reports why it ended. A
// disconnect leaves the stop signal untouched so workers keep draining the
// queue while the caller decides whether to reconnect.
func (c *Collector) monitor(ctx context.Context, queue chan domain.RawMessage, session <-chan error, deadline <-chan time.Time) string {
	ticker := c.clock.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return c.reason()

		case <-deadline:
			c.requestStop(ReasonTimeLimit)
			return ReasonTimeLimit

		case err := <-session:
			if ctx.Err() != nil {
				return c.reason()
			}
			if err != nil {
				c.logger.Warn("stream session ended", "error", err)
			} else {
				c.logger.Warn("stream session ended unexpectedly")
			}
			return ReasonDisconnect

		case <-ticker.Chan():
			if c.postLimit > 0 && c.progress.Load() >= c.postLimit {
				c.requestStop(ReasonPostLimit)
				return ReasonPostLimit
			}
			c.metrics.QueueDepth.Set(float64(len(queue)))
		}
	}
}

// requestStop records the first stop reason and fires the stop signal.
// Safe to call from any goroutine, any number of times.
func (c *Collector) requestStop(reason string) {
	c.stopOnce.Do(func() {
		c.stopReason.Store(reason)
		c.logger.Info("stop requested", "reason", reason)
		if c.cancel != nil {
			c.cancel()
		}
	})
}

func (c *Collector) reason() string {
	if r, ok := c.stopReason.Load().(string); ok && r != "" {
		return r
	}
	return ReasonInterrupt
}

// waitTimeout waits for wg up to d, reporting whether the wait completed.
// The bound uses the wall clock so teardown cannot stall behind a fake
// clock in tests.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
