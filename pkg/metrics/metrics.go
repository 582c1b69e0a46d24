package metrics

import (
	"strconv"
	"time"
)

// RecordWrite records a Put or Delete accepted by the engine.
func (r *Registry) RecordWrite(op string, duration time.Duration) {
	r.WritesTotal.WithLabelValues(op).Inc()
	r.OperationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordRead records a Get or Scan, whether or not the key was found.
func (r *Registry) RecordRead(op, status string, duration time.Duration) {
	r.ReadsTotal.WithLabelValues(status).Inc()
	r.ReadDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordFlush records a completed immutable-memtable flush to L0.
func (r *Registry) RecordFlush(duration time.Duration, bytesWritten int64) {
	r.FlushesTotal.Inc()
	r.FlushDuration.Observe(duration.Seconds())
	r.FlushBytes.Add(float64(bytesWritten))
}

// RecordCompaction records a completed compaction run.
func (r *Registry) RecordCompaction(strategy string, duration time.Duration, bytesRead, bytesWritten int64, tombstonesDropped int) {
	r.CompactionsTotal.WithLabelValues(strategy).Inc()
	r.CompactionDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	r.CompactionBytesRead.Add(float64(bytesRead))
	r.CompactionBytesWritten.Add(float64(bytesWritten))
	r.TombstonesDropped.Add(float64(tombstonesDropped))
}

// SetMemTableSize reports the active memtable's approximate size.
func (r *Registry) SetMemTableSize(bytes int64) {
	r.MemTableSizeBytes.Set(float64(bytes))
}

// SetImmutableQueueLen reports how many immutable memtables are awaiting flush.
func (r *Registry) SetImmutableQueueLen(n int) {
	r.ImmutableQueueLen.Set(float64(n))
}

// SetL0TableCount reports the current number of L0 tables.
func (r *Registry) SetL0TableCount(n int) {
	r.L0TableCount.Set(float64(n))
}

// SetLevelTableCount reports the current table count for one level (L1+).
func (r *Registry) SetLevelTableCount(level int, n int) {
	r.LevelTableCount.WithLabelValues(strconv.Itoa(level)).Set(float64(n))
}

// RecordCacheHit records a block cache hit.
func (r *Registry) RecordCacheHit() {
	r.CacheHitsTotal.Inc()
}

// RecordCacheMiss records a block cache miss.
func (r *Registry) RecordCacheMiss() {
	r.CacheMissesTotal.Inc()
}

// RecordBloomNegative records a lookup short-circuited by a bloom filter.
func (r *Registry) RecordBloomNegative() {
	r.BloomNegativesTotal.Inc()
}
