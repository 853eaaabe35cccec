// Package session provides the in-memory registry of transfer sessions, the invite code
// allocator that backs it, and the session lifecycle state machine.
//
// # State machine
//
//	Pending ──Activate──▶ Active ──Finish──▶ Completed | Failed
//	   │                    │
//	   └──────Expire────────┴──────────────▶ Expired
//
// A record leaves the [Store] the moment it reaches a terminal state and its invite code
// is handed back to the [Allocator].
//
// # Architecture boundaries
//
// This package owns code allocation, record bookkeeping, and transition ordering. It does
// NOT read payload bytes, talk to the network, or decide what a terminal transition means
// for observers. Those responsibilities belong to the Engine and the transfer package.
//
// # What this package must NOT do
//
//   - Import fileshare or any transport package (no upward imports).
//   - Perform I/O on a [Payload]; it only carries the handle between owners.
//   - Expose a way to read a record without holding the store lock.
package session
