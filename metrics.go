package fileshare

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram tracked by [Metrics].
type MetricID uint16

const (
	// MetricSessionCreated counts sessions registered by CreateSession.
	MetricSessionCreated MetricID = iota
	// MetricUploadRejected counts uploads refused for invalid input or a size mismatch.
	MetricUploadRejected
	// MetricUploadFailed counts uploads aborted while staging.
	MetricUploadFailed
	// MetricCodesExhausted counts uploads refused because no invite code was free.
	MetricCodesExhausted
	// MetricUploadRateLimited counts uploads refused by the per-IP throttle.
	MetricUploadRateLimited
	// MetricFetchSuccess counts codes claimed by a receiver.
	MetricFetchSuccess
	// MetricFetchNotFound counts lookups of unknown, consumed, or expired codes.
	MetricFetchNotFound
	// MetricFetchRateLimited counts lookups refused by the per-IP throttle.
	MetricFetchRateLimited
	// MetricTransferCompleted counts sessions that delivered every byte.
	MetricTransferCompleted
	// MetricTransferFailed counts sessions whose source or receiver broke mid-stream.
	MetricTransferFailed
	// MetricSessionExpired counts sessions retired by the reaper.
	MetricSessionExpired
	// MetricBytesDelivered accumulates payload bytes written to receivers.
	MetricBytesDelivered
	// MetricStatusQuery counts owner status lookups.
	MetricStatusQuery
	// MetricReceiptWriteFailed counts terminal outcomes that could not be recorded.
	MetricReceiptWriteFailed
	// MetricRateLimitHit counts every throttle denial.
	MetricRateLimitHit
	// MetricUploadLatency is the staging duration histogram.
	MetricUploadLatency
	// MetricTransferLatency is the activation-to-terminal duration histogram.
	MetricTransferLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters and histograms.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and enabled histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func isHistogram(id MetricID) bool {
	return id == MetricUploadLatency || id == MetricTransferLatency
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics returns a Metrics whose methods are no-ops when cfg.Enabled is false.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to a counter.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to a counter.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || isHistogram(id) {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in a histogram. Counter IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !isHistogram(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot returns empty maps when metrics are disabled; histograms appear only when
// latency histograms are enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricUploadLatency, MetricTransferLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

// bucketIndex maps d onto upper bounds of 0.1s, 0.5s, 1s, 2.5s, 5s, 10s, 30s, +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 100:
		return 0
	case ms <= 500:
		return 1
	case ms <= 1000:
		return 2
	case ms <= 2500:
		return 3
	case ms <= 5000:
		return 4
	case ms <= 10000:
		return 5
	case ms <= 30000:
		return 6
	default:
		return 7
	}
}
