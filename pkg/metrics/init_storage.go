package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initStorageMetrics() {
	r.WritesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_writes_total",
			Help: "Total number of Put/Delete operations accepted by the engine.",
		},
		[]string{"op"},
	)

	r.ReadsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_reads_total",
			Help: "Total number of Get operations, by outcome.",
		},
		[]string{"status"},
	)

	r.ReadDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lsmkv_read_duration_seconds",
			Help:    "Get/Scan latency in seconds.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"op"},
	)

	r.OperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lsmkv_operation_duration_seconds",
			Help:    "Put/Delete latency in seconds.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"op"},
	)

	r.FlushesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_flushes_total",
			Help: "Total number of immutable memtable flushes to L0.",
		},
	)

	r.FlushDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lsmkv_flush_duration_seconds",
			Help:    "Flush duration in seconds.",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
	)

	r.FlushBytes = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_flush_bytes_total",
			Help: "Total bytes written by flushes.",
		},
	)

	r.CompactionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_compactions_total",
			Help: "Total number of compactions run, by strategy.",
		},
		[]string{"strategy"},
	)

	r.CompactionDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lsmkv_compaction_duration_seconds",
			Help:    "Compaction duration in seconds, by strategy.",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"strategy"},
	)

	r.CompactionBytesRead = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_compaction_bytes_read_total",
			Help: "Total bytes read from input tables during compaction.",
		},
	)

	r.CompactionBytesWritten = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_compaction_bytes_written_total",
			Help: "Total bytes written to output tables during compaction.",
		},
	)

	r.TombstonesDropped = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_tombstones_dropped_total",
			Help: "Total tombstones dropped during bottom-level compaction.",
		},
	)

	r.MemTableSizeBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "lsmkv_memtable_size_bytes",
			Help: "Approximate size of the active memtable in bytes.",
		},
	)

	r.ImmutableQueueLen = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "lsmkv_immutable_memtable_queue_length",
			Help: "Number of immutable memtables waiting to be flushed.",
		},
	)

	r.L0TableCount = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "lsmkv_l0_table_count",
			Help: "Number of SSTables currently in L0.",
		},
	)

	r.LevelTableCount = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lsmkv_level_table_count",
			Help: "Number of SSTables per level (L1+).",
		},
		[]string{"level"},
	)

	r.CacheHitsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_block_cache_hits_total",
			Help: "Total block cache hits.",
		},
	)

	r.CacheMissesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_block_cache_misses_total",
			Help: "Total block cache misses.",
		},
	)

	r.BloomNegativesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_bloom_filter_negatives_total",
			Help: "Total lookups short-circuited by a bloom filter negative.",
		},
	)
}
