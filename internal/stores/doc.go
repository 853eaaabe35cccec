// Package stores provides Redis-backed, short-lived records that outlive a transfer
// session: the outcome receipt a sender reads after the session has left memory.
//
// # Design
//
// Each receipt is a versioned, binary-encoded record stored under
// "<prefix>:<sessionID>" with a TTL. A receipt is written once with SET NX: the first
// terminal outcome wins and later writes for the same session are rejected.
//
// # What this package must NOT do
//
//   - Import fileshare or any sibling internal package.
//   - Hold payload bytes.
package stores
