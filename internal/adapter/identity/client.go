package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/barometer-digital/skyscraper/internal/observability"
)

// Client implements domain.HandleResolver against a PLC directory. Each
// client owns its own LRU cache, so per-worker clients never share
// resolution state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *lru.Cache[string, []string]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a directory client with a bounded resolution cache.
func NewClient(baseURL string, timeout time.Duration, cacheSize int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if cacheSize < 1 {
		cacheSize = 1
	}
	cache, _ := lru.New[string, []string](cacheSize)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// didDocument is the subset of a directory response we read.
type didDocument struct {
	AlsoKnownAs []string `json:"alsoKnownAs"`
}

// ResolveHandle returns the handles known for did, most preferred first.
// Results are cached, empty results included, so repeat authors cost one
// lookup per worker.
func (c *Client) ResolveHandle(ctx context.Context, did string) ([]string, error) {
	if handles, ok := c.cache.Get(did); ok {
		c.metrics.ResolverLookups.WithLabelValues("cache").Inc()
		return handles, nil
	}

	u := c.baseURL + "/" + url.PathEscape(did)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.metrics.ResolverLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ResolverDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.ResolverLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("resolve %s: %w", did, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.ResolverLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("directory error: status %d: %s", resp.StatusCode, body)
	}

	var doc didDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		c.metrics.ResolverLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	handles := make([]string, 0, len(doc.AlsoKnownAs))
	for _, aka := range doc.AlsoKnownAs {
		if h, ok := strings.CutPrefix(aka, "at://"); ok && h != "" {
			handles = append(handles, h)
		}
	}
	c.cache.Add(did, handles)

	if len(handles) == 0 {
		c.metrics.ResolverLookups.WithLabelValues("empty").Inc()
	} else {
		c.metrics.ResolverLookups.WithLabelValues("success").Inc()
	}
	return handles, nil
}
