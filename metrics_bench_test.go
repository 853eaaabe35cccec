package fileshare

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricFetchSuccess)
	}
}

func BenchmarkMetricsIncDisabled(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricFetchSuccess)
	}
}

func BenchmarkMetricsAddParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Add(MetricBytesDelivered, 32<<10)
		}
	})
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	d := 1200 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricTransferLatency, d)
		}
	})
}

func BenchmarkCreateAndFetch(b *testing.B) {
	engine := newTestEngine(b, func(c *Config) {
		c.Security.EnableFetchThrottle = false
		c.Security.EnableUploadThrottle = false
	})
	payload := bytes.Repeat([]byte{'x'}, 64<<10)
	ctx := context.Background()

	b.SetBytes(int64(len(payload)))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		ticket, err := engine.CreateSession(ctx, Upload{
			Filename: "bench.bin",
			Size:     int64(len(payload)),
			Body:     bytes.NewReader(payload),
		})
		if err != nil {
			b.Fatalf("create: %v", err)
		}
		d, err := engine.FetchSession(ctx, ticket.Code)
		if err != nil {
			b.Fatalf("fetch: %v", err)
		}
		if _, err := d.Stream(ctx, io.Discard); err != nil {
			b.Fatalf("stream: %v", err)
		}
		if err := d.Close(); err != nil {
			b.Fatalf("close: %v", err)
		}
	}
}
