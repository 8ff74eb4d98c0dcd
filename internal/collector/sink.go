package collector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/barometer-digital/skyscraper/internal/domain"
	"github.com/barometer-digital/skyscraper/internal/observability"
)

// RecordWriter persists one output record at the moment it is stored.
// Append is called from inside the sink's critical section, so records
// arrive one at a time, in store order.
type RecordWriter interface {
	Append(ctx context.Context, post domain.Post) error
}

// Sink lands each extracted post: store update and record-writer appends
// happen under one critical section, then the progress counter is bumped
// outside it. When a post limit is set, the sink requests a stop the moment
// the counter reaches it rather than waiting for the next poll.
type Sink struct {
	mu       sync.Mutex
	store    *Store
	writers  []RecordWriter
	progress *atomic.Int64
	limit    int64
	onLimit  func()
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// Store lands one post. Writer failures are logged and do not prevent the
// post from counting as collected.
func (s *Sink) Store(ctx context.Context, post domain.Post) {
	s.mu.Lock()
	s.store.Put(post)
	for _, w := range s.writers {
		if err := w.Append(ctx, post); err != nil {
			s.logger.Error("record write failed", "uri", post.URI, "error", err)
		}
	}
	s.mu.Unlock()

	n := s.progress.Add(1)
	s.metrics.PostsCollected.Inc()
	s.logger.Debug("saved post", "author", post.Author, "text", preview(post.Text, 50))

	if s.limit > 0 && n >= s.limit && s.onLimit != nil {
		s.onLimit()
	}
}

// preview truncates s to at most n runes for log output.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
