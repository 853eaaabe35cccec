package fileshare

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSessionCreated)

	if got := m.Value(MetricSessionCreated); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricFetchSuccess)
	m.Inc(MetricFetchSuccess)
	m.Add(MetricBytesDelivered, 4096)

	if got := m.Value(MetricFetchSuccess); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricBytesDelivered); got != 4096 {
		t.Fatalf("expected 4096 bytes, got %d", got)
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
				m.Inc(MetricFetchNotFound)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricFetchNotFound); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		100 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		2500 * time.Millisecond,
		5 * time.Second,
		10 * time.Second,
		30 * time.Second,
		time.Minute,
	}

	for _, d := range observations {
		m.Observe(MetricTransferLatency, d)
	}

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricTransferLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}

	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsSnapshotSeparatesCountersAndHistograms(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricTransferCompleted)
	m.Inc(MetricTransferFailed)
	m.Inc(MetricTransferFailed)
	m.Inc(MetricUploadLatency)
	m.Observe(MetricUploadLatency, 20*time.Millisecond)
	m.Observe(MetricSessionCreated, time.Second)

	snap := m.Snapshot()

	if snap.Counters[MetricTransferCompleted] != 1 {
		t.Fatalf("expected completed=1 got %d", snap.Counters[MetricTransferCompleted])
	}
	if snap.Counters[MetricTransferFailed] != 2 {
		t.Fatalf("expected failed=2 got %d", snap.Counters[MetricTransferFailed])
	}
	if _, ok := snap.Counters[MetricUploadLatency]; ok {
		t.Fatal("histogram ID must not appear as a counter")
	}
	if _, ok := snap.Histograms[MetricSessionCreated]; ok {
		t.Fatal("counter ID must not appear as a histogram")
	}
	if snap.Histograms[MetricUploadLatency][0] != 1 {
		t.Fatalf("expected first upload bucket=1 got %d", snap.Histograms[MetricUploadLatency][0])
	}
}

func TestMetricsLatencyDisabledOmitsHistograms(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricTransferLatency, time.Second)

	if snap := m.Snapshot(); len(snap.Histograms) != 0 {
		t.Fatalf("expected no histograms, got %d", len(snap.Histograms))
	}
}
