// Package rate provides Redis-backed fixed-window counters that throttle abuse of the
// transfer endpoints.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - rff: failed invite-code lookups per client IP
//   - rup: uploads per client IP
//
// Invite codes come from a 16-bit space, so failed lookups are the signal for code
// guessing; successful fetches clear the caller's failure counter.
//
// # What this package must NOT do
//
//   - Decide which operations to throttle (the engine does).
//   - Be imported outside the fileshare module.
package rate
