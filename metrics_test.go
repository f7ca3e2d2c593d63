package gatewayauth

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricAuthSuccess)

	if got := m.Value(MetricAuthSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricAuthFailure)
	m.Observe(MetricAuthenticateLatency, time.Millisecond)
	if m.Enabled() || m.Value(MetricAuthFailure) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRateLimited)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRateLimited); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		250 * time.Microsecond,
		500 * time.Microsecond,
		time.Millisecond,
		2500 * time.Microsecond,
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		time.Second,
	}
	for _, d := range observations {
		m.Observe(MetricAuthenticateLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricAuthenticateLatency]
	if len(buckets) != latencyBucketCount {
		t.Fatalf("expected %d buckets, got %d", latencyBucketCount, len(buckets))
	}
	for i, n := range buckets {
		if n != 1 {
			t.Fatalf("bucket %d: expected 1, got %d", i, n)
		}
	}
	if len(LatencyBucketBounds()) != latencyBucketCount-1 {
		t.Fatal("bounds must cover every finite bucket")
	}
}

func TestMetricsObserveIgnoresCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricAuthSuccess, time.Millisecond)

	if _, ok := m.Snapshot().Histograms[MetricAuthSuccess]; ok {
		t.Fatal("counters carry no histogram")
	}
}

func TestMetricsLatencyDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricAuthenticateLatency, time.Millisecond)

	if _, ok := m.Snapshot().Histograms[MetricAuthenticateLatency]; ok {
		t.Fatal("expected no histogram when latency is disabled")
	}
}

func TestMetricIDString(t *testing.T) {
	for id := MetricID(0); id < metricIDCount; id++ {
		if id.String() == "" {
			t.Fatalf("metric %d has no name", id)
		}
	}
	if MetricUserStatusCacheHit.String() != "user_status_cache_hit" {
		t.Fatalf("unexpected name %q", MetricUserStatusCacheHit.String())
	}
	if metricIDCount.String() != "unknown" {
		t.Fatal("out of range id must be unknown")
	}
}
