// Package transfer moves a known number of bytes from a payload source to a receiver in
// bounded chunks.
//
// # Chunking
//
// [Copy] reads at most [Options.ChunkSize] bytes at a time into a single buffer that is
// reused for the whole transfer, writes them to the destination, and optionally flushes
// and reports progress after every chunk. The context is checked between chunks.
//
// # Failure kinds
//
//   - [ErrShortRead]: the source hit EOF before the declared size.
//   - [ErrSourceFailed]: the source returned a read error.
//   - [ErrReceiverGone]: the destination returned a write error.
//   - ctx.Err(): the context was cancelled between chunks.
//
// # What this package must NOT do
//
//   - Know about sessions, invite codes, or state transitions.
//   - Close or release either end of the copy.
package transfer
