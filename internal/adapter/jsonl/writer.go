package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/barometer-digital/skyscraper/internal/domain"
)

// Writer persists posts as newline-delimited JSON, one record per line in
// store order. Appends are unbuffered: a record reaches the file before
// Append returns, so an interrupted run keeps everything already counted.
type Writer struct {
	mu   sync.Mutex
	path string
	file *os.File
	enc  *json.Encoder
}

// NewWriter opens (or creates) the output file for appending.
func NewWriter(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &Writer{
		path: path,
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Append writes one post as a single JSON line.
func (w *Writer) Append(_ context.Context, post domain.Post) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(post); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// Path returns the output file path.
func (w *Writer) Path() string {
	return w.path
}

// Close flushes nothing (appends are unbuffered) and releases the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
