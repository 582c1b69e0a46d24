package metrics

import (
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	if r.WritesTotal == nil {
		t.Error("WritesTotal not initialized")
	}
	if r.ReadsTotal == nil {
		t.Error("ReadsTotal not initialized")
	}
	if r.FlushesTotal == nil {
		t.Error("FlushesTotal not initialized")
	}
	if r.CompactionsTotal == nil {
		t.Error("CompactionsTotal not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()

	if r1 != r2 {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordWrite(t *testing.T) {
	r := NewRegistry()

	r.RecordWrite("put", 10*time.Millisecond)
	r.RecordWrite("put", 20*time.Millisecond)
	r.RecordWrite("delete", 5*time.Millisecond)

	counter, err := r.WritesTotal.GetMetricWithLabelValues("put")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2 {
		t.Errorf("put counter = %v, want 2", metric.Counter.GetValue())
	}
}

func TestRecordRead(t *testing.T) {
	r := NewRegistry()

	r.RecordRead("get", "hit", 1*time.Millisecond)
	r.RecordRead("get", "hit", 1*time.Millisecond)
	r.RecordRead("get", "miss", 1*time.Millisecond)

	hitCounter, err := r.ReadsTotal.GetMetricWithLabelValues("hit")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := hitCounter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2 {
		t.Errorf("hit counter = %v, want 2", metric.Counter.GetValue())
	}
}

func TestRecordFlush(t *testing.T) {
	r := NewRegistry()

	r.RecordFlush(5*time.Millisecond, 4096)
	r.RecordFlush(7*time.Millisecond, 2048)

	var metric dto.Metric
	if err := r.FlushesTotal.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2 {
		t.Errorf("FlushesTotal = %v, want 2", metric.Counter.GetValue())
	}

	if err := r.FlushBytes.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 6144 {
		t.Errorf("FlushBytes = %v, want 6144", metric.Counter.GetValue())
	}
}

func TestRecordCompaction(t *testing.T) {
	r := NewRegistry()

	r.RecordCompaction("leveled", 100*time.Millisecond, 8192, 4096, 3)

	counter, err := r.CompactionsTotal.GetMetricWithLabelValues("leveled")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 1 {
		t.Errorf("CompactionsTotal = %v, want 1", metric.Counter.GetValue())
	}

	if err := r.TombstonesDropped.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 3 {
		t.Errorf("TombstonesDropped = %v, want 3", metric.Counter.GetValue())
	}
}

func TestGaugeSetters(t *testing.T) {
	r := NewRegistry()

	r.SetMemTableSize(1024)
	r.SetImmutableQueueLen(2)
	r.SetL0TableCount(4)
	r.SetLevelTableCount(1, 6)

	var metric dto.Metric

	if err := r.MemTableSizeBytes.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() != 1024 {
		t.Errorf("MemTableSizeBytes = %v, want 1024", metric.Gauge.GetValue())
	}

	if err := r.ImmutableQueueLen.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() != 2 {
		t.Errorf("ImmutableQueueLen = %v, want 2", metric.Gauge.GetValue())
	}

	if err := r.L0TableCount.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() != 4 {
		t.Errorf("L0TableCount = %v, want 4", metric.Gauge.GetValue())
	}

	levelGauge, err := r.LevelTableCount.GetMetricWithLabelValues("1")
	if err != nil {
		t.Fatalf("Failed to get level gauge: %v", err)
	}
	if err := levelGauge.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() != 6 {
		t.Errorf("LevelTableCount[1] = %v, want 6", metric.Gauge.GetValue())
	}
}

func TestCacheAndBloomCounters(t *testing.T) {
	r := NewRegistry()

	r.RecordCacheHit()
	r.RecordCacheHit()
	r.RecordCacheMiss()
	r.RecordBloomNegative()

	var metric dto.Metric

	if err := r.CacheHitsTotal.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2 {
		t.Errorf("CacheHitsTotal = %v, want 2", metric.Counter.GetValue())
	}

	if err := r.CacheMissesTotal.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 1 {
		t.Errorf("CacheMissesTotal = %v, want 1", metric.Counter.GetValue())
	}

	if err := r.BloomNegativesTotal.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 1 {
		t.Errorf("BloomNegativesTotal = %v, want 1", metric.Counter.GetValue())
	}
}

func TestGetPrometheusRegistry(t *testing.T) {
	r := NewRegistry()
	promRegistry := r.GetPrometheusRegistry()

	if promRegistry == nil {
		t.Fatal("GetPrometheusRegistry() returned nil")
	}

	metrics, err := promRegistry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	if len(metrics) == 0 {
		t.Error("No metrics registered")
	}

	expectedMetrics := []string{
		"lsmkv_writes_total",
		"lsmkv_memtable_size_bytes",
		"lsmkv_compactions_total",
	}

	metricNames := make(map[string]bool)
	for _, m := range metrics {
		metricNames[m.GetName()] = true
	}

	for _, expected := range expectedMetrics {
		if !metricNames[expected] {
			t.Errorf("Expected metric %s not found", expected)
		}
	}
}

func TestMetricNaming(t *testing.T) {
	r := NewRegistry()
	promRegistry := r.GetPrometheusRegistry()

	metrics, err := promRegistry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	for _, m := range metrics {
		name := m.GetName()
		if !strings.HasPrefix(name, "lsmkv_") {
			t.Errorf("Metric %s does not have lsmkv_ prefix", name)
		}
	}
}

func TestHistogramMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordRead("get", "hit", 100*time.Millisecond)
	r.RecordRead("get", "hit", 200*time.Millisecond)
	r.RecordRead("get", "hit", 150*time.Millisecond)

	histogram, err := r.ReadDuration.GetMetricWithLabelValues("get")
	if err != nil {
		t.Fatalf("Failed to get histogram: %v", err)
	}

	var metric dto.Metric
	if err := histogram.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("Sample count = %v, want 3", metric.Histogram.GetSampleCount())
	}

	sum := metric.Histogram.GetSampleSum()
	if sum < 0.44 || sum > 0.46 {
		t.Errorf("Sample sum = %v, want ~0.45", sum)
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				r.RecordWrite("put", 1*time.Millisecond)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	counter, err := r.WritesTotal.GetMetricWithLabelValues("put")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 1000 {
		t.Errorf("Counter = %v, want 1000", metric.Counter.GetValue())
	}
}

func BenchmarkRecordWrite(b *testing.B) {
	r := NewRegistry()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.RecordWrite("put", 10*time.Millisecond)
	}
}

func BenchmarkRecordCompaction(b *testing.B) {
	r := NewRegistry()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.RecordCompaction("leveled", 5*time.Millisecond, 4096, 4096, 1)
	}
}

func BenchmarkSetGauge(b *testing.B) {
	r := NewRegistry()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.SetMemTableSize(int64(i))
	}
}
