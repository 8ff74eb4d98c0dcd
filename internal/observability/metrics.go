package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the collector.
type Metrics struct {
	FramesReceived     prometheus.Counter
	PostsCollected     prometheus.Counter
	ProcessingErrors   prometheus.Counter
	ProcessingDuration prometheus.Histogram
	ResolverLookups    *prometheus.CounterVec
	ResolverDuration   prometheus.Histogram
	QueueDepth         prometheus.Gauge
	Reconnects         prometheus.Counter
	CollectorRunning   prometheus.Gauge
}

// NewMetrics creates and registers all collector metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skyscraper",
			Name:      "frames_received_total",
			Help:      "Total frames received from the event stream.",
		}),
		PostsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skyscraper",
			Name:      "posts_collected_total",
			Help:      "Total posts extracted and stored.",
		}),
		ProcessingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skyscraper",
			Name:      "processing_errors_total",
			Help:      "Total frames that failed during processing.",
		}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "skyscraper",
			Name:      "processing_duration_seconds",
			Help:      "Duration of handling a single frame.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		ResolverLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skyscraper",
			Name:      "resolver_lookups_total",
			Help:      "Handle resolution attempts by result.",
		}, []string{"result"}),
		ResolverDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "skyscraper",
			Name:      "resolver_duration_seconds",
			Help:      "Duration of directory lookups.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "skyscraper",
			Name:      "queue_depth",
			Help:      "Frames waiting in the worker queue, sampled each poll.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skyscraper",
			Name:      "reconnects_total",
			Help:      "Total stream reconnection attempts.",
		}),
		CollectorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "skyscraper",
			Name:      "collector_running",
			Help:      "1 while a collection run is active, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.FramesReceived,
		m.PostsCollected,
		m.ProcessingErrors,
		m.ProcessingDuration,
		m.ResolverLookups,
		m.ResolverDuration,
		m.QueueDepth,
		m.Reconnects,
		m.CollectorRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FramesReceived:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "skyscraper", Name: "frames_received_total"}),
		PostsCollected:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "skyscraper", Name: "posts_collected_total"}),
		ProcessingErrors:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "skyscraper", Name: "processing_errors_total"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "skyscraper", Name: "processing_duration_seconds"}),
		ResolverLookups:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "skyscraper", Name: "resolver_lookups_total"}, []string{"result"}),
		ResolverDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "skyscraper", Name: "resolver_duration_seconds"}),
		QueueDepth:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "skyscraper", Name: "queue_depth"}),
		Reconnects:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "skyscraper", Name: "reconnects_total"}),
		CollectorRunning:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "skyscraper", Name: "collector_running"}),
	}
}
