package internaldefs

import (
	fileshare "github.com/SuperSection/fileshare"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   fileshare.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   fileshare.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: fileshare.MetricSessionCreated, Name: "fileshare_session_created_total", Help: "Sessions registered with an invite code."},
	{ID: fileshare.MetricUploadRejected, Name: "fileshare_upload_rejected_total", Help: "Uploads refused for invalid input or a size mismatch."},
	{ID: fileshare.MetricUploadFailed, Name: "fileshare_upload_failed_total", Help: "Uploads aborted while staging."},
	{ID: fileshare.MetricCodesExhausted, Name: "fileshare_codes_exhausted_total", Help: "Uploads refused because no invite code was free."},
	{ID: fileshare.MetricUploadRateLimited, Name: "fileshare_upload_rate_limited_total", Help: "Uploads refused by the per-IP throttle."},
	{ID: fileshare.MetricFetchSuccess, Name: "fileshare_fetch_success_total", Help: "Invite codes claimed by a receiver."},
	{ID: fileshare.MetricFetchNotFound, Name: "fileshare_fetch_not_found_total", Help: "Lookups of unknown, consumed, or expired codes."},
	{ID: fileshare.MetricFetchRateLimited, Name: "fileshare_fetch_rate_limited_total", Help: "Lookups refused by the per-IP throttle."},
	{ID: fileshare.MetricTransferCompleted, Name: "fileshare_transfer_completed_total", Help: "Sessions that delivered every byte."},
	{ID: fileshare.MetricTransferFailed, Name: "fileshare_transfer_failed_total", Help: "Sessions that failed mid-stream or on shutdown."},
	{ID: fileshare.MetricSessionExpired, Name: "fileshare_session_expired_total", Help: "Sessions retired by the expiry reaper."},
	{ID: fileshare.MetricBytesDelivered, Name: "fileshare_bytes_delivered_total", Help: "Payload bytes written to receivers."},
	{ID: fileshare.MetricStatusQuery, Name: "fileshare_status_query_total", Help: "Owner status lookups."},
	{ID: fileshare.MetricReceiptWriteFailed, Name: "fileshare_receipt_write_failed_total", Help: "Terminal outcomes that could not be recorded."},
	{ID: fileshare.MetricRateLimitHit, Name: "fileshare_rate_limit_hit_total", Help: "Throttle checks that denied requests."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: fileshare.MetricUploadLatency, Name: "fileshare_upload_duration_seconds", Help: "Time spent staging an upload."},
	{ID: fileshare.MetricTransferLatency, Name: "fileshare_transfer_duration_seconds", Help: "Time from activation to a terminal state."},
}

// HistogramBounds are the upper bounds of the eight engine buckets.
var HistogramBounds = []string{
	"0.1",
	"0.5",
	"1",
	"2.5",
	"5",
	"10",
	"30",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds rewritten for instrument names.
var HistogramBoundSuffix = []string{
	"0_1",
	"0_5",
	"1",
	"2_5",
	"5",
	"10",
	"30",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
