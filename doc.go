// Package fileshare hands one uploaded file to exactly one receiver through a short-lived
// numeric invite code in [1, 65535].
//
// A sender calls [Engine.CreateSession] with the file; the engine stages the bytes, binds
// them to a fresh invite code, and returns a [Ticket]. A receiver calls
// [Engine.FetchSession] with that code and reads the bytes from the returned [Download].
// The first successful fetch consumes the code; every later fetch of the same code, and
// every fetch after the validity window, reports [ErrNotFound].
//
// Engine methods are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// fileshare is the public surface. It exposes [Engine], [Builder], [Config], and value
// types ([Ticket], [StatusReport], [MetricsSnapshot]). The code allocator and session
// state machine live in package session, chunked copying in package transfer, and the
// filename header codec in package disposition. Upload staging, outcome receipts,
// throttling, and audit dispatch live under internal/.
//
// # What this package must NOT do
//
//   - Persist sessions across restarts. Only terminal outcome receipts reach Redis.
//   - Expose Redis clients, staged file paths, or receipt encoding in its public API.
//   - Retry transfers. A broken stream fails its session.
package fileshare
