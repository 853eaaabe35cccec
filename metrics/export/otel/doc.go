// Package otel publishes fileshare engine metrics through OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter and an
// Int64ObservableGauge per histogram bucket, plus a gauge for live sessions. A single
// callback reads [fileshare.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
