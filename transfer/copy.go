package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const (
	// DefaultChunkSize is the per-read buffer size used when Options.ChunkSize is zero.
	DefaultChunkSize = 32 << 10
	// MaxChunkSize caps the per-read buffer.
	MaxChunkSize = 1 << 20
)

var (
	// ErrShortRead is returned when the source ends before the declared size.
	ErrShortRead = errors.New("source ended before declared size")
	// ErrSourceFailed is returned when reading the source fails.
	ErrSourceFailed = errors.New("source read failed")
	// ErrReceiverGone is returned when writing to the destination fails.
	ErrReceiverGone = errors.New("receiver write failed")
	// ErrInvalidSize is returned for a negative size or an out-of-range chunk size.
	ErrInvalidSize = errors.New("invalid transfer size")
)

// Options tunes a single [Copy] call.
type Options struct {
	// ChunkSize is the maximum number of bytes moved per read/write pair.
	ChunkSize int
	// Progress, when set, receives the cumulative number of delivered bytes after every chunk.
	Progress func(delivered int64)
}

type flusher interface {
	Flush()
}

// Copy moves exactly size bytes from src to dst and returns the number of bytes that
// reached dst. A nil error means the count equals size.
func Copy(ctx context.Context, dst io.Writer, src io.Reader, size int64, opts Options) (int64, error) {
	if size < 0 {
		return 0, ErrInvalidSize
	}
	chunk := opts.ChunkSize
	if chunk == 0 {
		chunk = DefaultChunkSize
	}
	if chunk < 0 || chunk > MaxChunkSize {
		return 0, ErrInvalidSize
	}
	if int64(chunk) > size && size > 0 {
		chunk = int(size)
	}

	var buf []byte
	if size > 0 {
		buf = make([]byte, chunk)
	}
	fl, canFlush := dst.(flusher)

	var delivered int64
	for delivered < size {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		want := int64(len(buf))
		if remaining := size - delivered; remaining < want {
			want = remaining
		}

		n, rerr := io.ReadFull(src, buf[:want])
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			if werr == nil && wn < n {
				werr = io.ErrShortWrite
			}
			delivered += int64(wn)
			if werr != nil {
				return delivered, fmt.Errorf("%w: %v", ErrReceiverGone, werr)
			}
			if canFlush {
				fl.Flush()
			}
			if opts.Progress != nil {
				opts.Progress(delivered)
			}
		}

		if rerr != nil {
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				return delivered, fmt.Errorf("%w: %d of %d bytes", ErrShortRead, delivered, size)
			}
			return delivered, fmt.Errorf("%w: %v", ErrSourceFailed, rerr)
		}
	}

	return delivered, nil
}
