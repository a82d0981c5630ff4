package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Shared label values for status-style labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Run outcome label values.
const (
	RunCompleted       = "completed"
	RunFailed          = "failed"
	RunSkippedUnstable = "skipped_unstable"
)

// Per-file outcome label values.
const (
	FileStatusUploaded  = "uploaded"
	FileStatusDuplicate = "duplicate"
	FileStatusDiscarded = "discarded"
)

// IngestMetrics contains Prometheus metrics for the ingestion pipeline.
type IngestMetrics struct {
	RunsTotal           *prometheus.CounterVec
	RunDuration         prometheus.Histogram
	FilesTotal          *prometheus.CounterVec
	ChunksTotal         *prometheus.CounterVec
	WeatherLookupsTotal *prometheus.CounterVec
}

// NewIngestMetrics creates and registers ingestion pipeline metrics.
func NewIngestMetrics(namespace string) *IngestMetrics {
	m := &IngestMetrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total number of pipeline passes",
			},
			[]string{"status"}, // status: completed, failed, skipped_unstable
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Duration of pipeline passes",
				Buckets:   prometheus.DefBuckets,
			},
		),
		FilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "files_total",
				Help:      "Total number of files handled, by outcome",
			},
			[]string{"status"}, // status: uploaded, duplicate, discarded
		),
		ChunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "chunks_total",
				Help:      "Total number of chunk writes to the store",
			},
			[]string{"status"}, // status: success, error
		),
		WeatherLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "weather",
				Name:      "lookups_total",
				Help:      "Total number of ambient temperature lookups",
			},
			[]string{"status"}, // status: success, error
		),
	}

	MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.FilesTotal,
		m.ChunksTotal,
		m.WeatherLookupsTotal,
	)

	return m
}
