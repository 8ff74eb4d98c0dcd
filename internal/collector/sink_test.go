package collector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barometer-digital/skyscraper/internal/domain"
	"github.com/barometer-digital/skyscraper/internal/observability"
)

type captureWriter struct {
	posts []domain.Post
	err   error
}

func (w *captureWriter) Append(_ context.Context, post domain.Post) error {
	if w.err != nil {
		return w.err
	}
	w.posts = append(w.posts, post)
	return nil
}

func newTestSink(writers []RecordWriter, limit int64, onLimit func()) (*Sink, *atomic.Int64) {
	var progress atomic.Int64
	return &Sink{
		store:    NewStore(),
		writers:  writers,
		progress: &progress,
		limit:    limit,
		onLimit:  onLimit,
		logger:   discardLogger(),
		metrics:  observability.NewMetricsForTesting(),
	}, &progress
}

func TestSink_StoreAppendsInOrder(t *testing.T) {
	writer := &captureWriter{}
	sink, progress := newTestSink([]RecordWriter{writer}, 0, nil)

	sink.Store(context.Background(), domain.Post{URI: "at://a/p/1", Text: "one"})
	sink.Store(context.Background(), domain.Post{URI: "at://a/p/2", Text: "two"})
	sink.Store(context.Background(), domain.Post{URI: "at://a/p/1", Text: "one again"})

	assert.Equal(t, int64(3), progress.Load())
	require.Len(t, writer.posts, 3)
	assert.Equal(t, "one", writer.posts[0].Text)
	assert.Equal(t, "two", writer.posts[1].Text)
	assert.Equal(t, "one again", writer.posts[2].Text)
	assert.Equal(t, 2, sink.store.Len())
	assert.Equal(t, 3, sink.store.LogLen())
}

func TestSink_WriterFailureStillCounts(t *testing.T) {
	failing := &captureWriter{err: errors.New("disk full")}
	healthy := &captureWriter{}
	sink, progress := newTestSink([]RecordWriter{failing, healthy}, 0, nil)

	sink.Store(context.Background(), domain.Post{URI: "at://a/p/1"})

	assert.Equal(t, int64(1), progress.Load())
	assert.Equal(t, 1, sink.store.Len())
	assert.Len(t, healthy.posts, 1)
}

func TestSink_LimitTriggersAtThreshold(t *testing.T) {
	var fired int
	sink, _ := newTestSink(nil, 2, func() { fired++ })

	sink.Store(context.Background(), domain.Post{URI: "at://a/p/1"})
	assert.Equal(t, 0, fired)

	sink.Store(context.Background(), domain.Post{URI: "at://a/p/2"})
	assert.Equal(t, 1, fired)
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short text unchanged", "hello", "hello"},
		{"exact length unchanged", "1234567890", "1234567890"},
		{"long text truncated", "12345678901", "1234567890..."},
		{"multibyte runes intact", "ééééééééééé", "éééééééééé..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, preview(tt.input, 10))
		})
	}
}
