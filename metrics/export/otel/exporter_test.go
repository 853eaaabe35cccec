package otel

import (
	"context"
	"sync"
	"testing"

	fileshare "github.com/SuperSection/fileshare"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot fileshare.MetricsSnapshot
	dropped  uint64
	live     int
}

func (f *fakeSource) MetricsSnapshot() fileshare.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := fileshare.MetricsSnapshot{
		Counters:   make(map[fileshare.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[fileshare.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *fakeSource) LiveSessions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.live
}

func collectInt64(t *testing.T, rm metricdata.ResourceMetrics, name string) (int64, bool) {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("fileshare-test")

	src := &fakeSource{
		snapshot: fileshare.MetricsSnapshot{
			Counters: map[fileshare.MetricID]uint64{
				fileshare.MetricTransferCompleted: 3,
			},
			Histograms: map[fileshare.MetricID][]uint64{
				fileshare.MetricTransferLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
		live:    5,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}

	checks := map[string]int64{
		"fileshare_transfer_completed_total":                3,
		"fileshare_transfer_duration_seconds_bucket_le_inf": 8,
		"fileshare_transfer_duration_seconds_bucket_le_0_5": 2,
		"fileshare_audit_dropped_total":                     1,
		"fileshare_live_sessions":                           5,
	}
	for name, want := range checks {
		got, ok := collectInt64(t, rm, name)
		if !ok {
			t.Fatalf("metric %s not collected", name)
		}
		if got != want {
			t.Fatalf("metric %s: got %d want %d", name, got, want)
		}
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("fileshare-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("fileshare-test")

	src := &fakeSource{
		snapshot: fileshare.MetricsSnapshot{
			Counters: map[fileshare.MetricID]uint64{
				fileshare.MetricBytesDelivered: 1,
			},
			Histograms: map[fileshare.MetricID][]uint64{
				fileshare.MetricUploadLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[fileshare.MetricBytesDelivered] = v
			src.live = int(v)
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
