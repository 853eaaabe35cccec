// Package prometheus renders fileshare engine metrics for Prometheus scrapers.
//
// [NewPrometheusExporter] accepts a [fileshare.Engine] and exposes an [http.Handler]
// that renders every counter and histogram in text exposition format. Counter names
// are prefixed fileshare_*_total; the upload and transfer durations are histograms in
// seconds, and fileshare_live_sessions reports how many invite codes are held.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
