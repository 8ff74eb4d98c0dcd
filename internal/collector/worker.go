package collector

import (
	"context"
	"log/slog"

	"github.com/barometer-digital/skyscraper/internal/domain"
)

// runWorker drains the queue until the stop signal fires. Each worker owns
// its own resolver, so resolution caches are never shared across workers.
func (c *Collector) runWorker(ctx context.Context, id int, queue <-chan domain.RawMessage) {
	defer c.workers.Done()

	logger := c.logger.With("worker", id)
	var resolver domain.HandleResolver
	if c.newResolver != nil {
		resolver = c.newResolver()
	}

	for {
		// Checking the stop signal before pulling keeps queued frames from
		// being picked up once a stop has been requested.
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case raw := <-queue:
			c.handleMessage(ctx, raw, resolver, logger)
		}
	}
}

// handleMessage processes one raw frame end to end. Failures are contained
// here: a bad frame must never take the worker down.
func (c *Collector) handleMessage(ctx context.Context, raw domain.RawMessage, resolver domain.HandleResolver, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("frame handling panicked", "panic", r)
			c.metrics.ProcessingErrors.Inc()
		}
	}()

	start := c.clock.Now()

	commit, err := c.decoder.DecodeCommit(raw)
	if err != nil {
		// Non-commit frames (identity, account, info) land here too.
		logger.Debug("skipping undecodable frame", "error", err)
		return
	}
	if commit == nil || len(commit.Ops) == 0 {
		return
	}

	for _, op := range commit.Ops {
		post, ok := c.extractPost(ctx, commit, op, resolver, logger)
		if !ok {
			continue
		}
		c.sink.Store(ctx, post)
	}

	c.metrics.ProcessingDuration.Observe(c.clock.Since(start).Seconds())
}

// extractPost applies the create-op filter, decodes the block payload, and
// assembles the output record. ok is false when the op yields no post.
func (c *Collector) extractPost(ctx context.Context, commit *domain.Commit, op domain.RepoOp, resolver domain.HandleResolver, logger *slog.Logger) (domain.Post, bool) {
	if !domain.IsPostCreate(op) {
		return domain.Post{}, false
	}

	records, err := c.decoder.DecodeBlocks(commit.Blocks)
	if err != nil {
		logger.Warn("block decode failed", "repo", commit.Repo, "path", op.Path, "error", err)
		c.metrics.ProcessingErrors.Inc()
		return domain.Post{}, false
	}

	rec, ok := domain.FindPostRecord(records)
	if !ok {
		return domain.Post{}, false
	}

	author := domain.ResolveAuthor(ctx, resolver, commit.Repo, logger)
	return domain.BuildPost(rec, commit.Repo, op.Path, author), true
}
