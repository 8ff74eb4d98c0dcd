package collector

import (
	"context"

	"github.com/barometer-digital/skyscraper/internal/domain"
)

// Source is a subscription to the upstream event stream. Subscribe blocks,
// delivering every received frame to emit in arrival order, until ctx is
// cancelled, emit returns an error, or the connection fails. Frames must
// never be dropped silently.
type Source interface {
	Subscribe(ctx context.Context, emit func(domain.RawMessage) error) error
}

// startProducer runs one subscription session feeding the queue. The
// returned channel receives the session's exit error, nil on clean return.
// The push into the queue blocks when the queue is full, which throttles
// the session instead of shedding frames.
func (c *Collector) startProducer(ctx context.Context, queue chan<- domain.RawMessage) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- c.source.Subscribe(ctx, func(raw domain.RawMessage) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case queue <- raw:
				c.received.Add(1)
				c.metrics.FramesReceived.Inc()
				return nil
			}
		})
	}()
	return done
}
