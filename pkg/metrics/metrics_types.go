package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric the storage engine exposes.
type Registry struct {
	WritesTotal        *prometheus.CounterVec
	ReadsTotal         *prometheus.CounterVec
	ReadDuration       *prometheus.HistogramVec
	OperationDuration  *prometheus.HistogramVec

	FlushesTotal   prometheus.Counter
	FlushDuration  prometheus.Histogram
	FlushBytes     prometheus.Counter

	CompactionsTotal    *prometheus.CounterVec
	CompactionDuration  *prometheus.HistogramVec
	CompactionBytesRead prometheus.Counter
	CompactionBytesWritten prometheus.Counter
	TombstonesDropped   prometheus.Counter

	MemTableSizeBytes prometheus.Gauge
	ImmutableQueueLen prometheus.Gauge
	L0TableCount      prometheus.Gauge
	LevelTableCount   *prometheus.GaugeVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	BloomNegativesTotal prometheus.Counter

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide metrics registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with every metric initialized.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initStorageMetrics()
	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry, for
// exposition over an HTTP handler owned by the embedding application.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
