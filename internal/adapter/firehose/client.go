package firehose

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/barometer-digital/skyscraper/internal/domain"
)

const (
	closeGracePeriod = 5 * time.Second

	// A connection that delivers neither a frame nor a ping within this
	// window is treated as dead, ending the session so the collector can
	// reconnect.
	readIdleTimeout = time.Minute
)

// Client subscribes to a repo event stream over websocket and hands every
// frame to the collector untouched.
type Client struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewClient creates a firehose client for the given subscription URL.
func NewClient(url string, logger *slog.Logger) *Client {
	return &Client{
		url:    url,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// Subscribe dials the stream and pumps frames into emit until ctx is
// cancelled or the connection drops. A side goroutine closes the
// connection on cancellation so the blocking read always wakes up.
func (c *Client) Subscribe(ctx context.Context, emit func(domain.RawMessage) error) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial firehose: %w (status %s)", err, resp.Status)
		}
		return fmt.Errorf("dial firehose: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(closeGracePeriod)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	conn.SetPingHandler(func(payload string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(closeGracePeriod))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	c.logger.Info("subscribed to firehose", "url", c.url)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		if err := emit(data); err != nil {
			return err
		}
	}
}
