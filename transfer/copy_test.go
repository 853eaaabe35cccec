package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

type brokenWriter struct {
	limit   int
	written bytes.Buffer
}

func (w *brokenWriter) Write(p []byte) (int, error) {
	room := w.limit - w.written.Len()
	if room <= 0 {
		return 0, errors.New("connection reset by peer")
	}
	if len(p) > room {
		w.written.Write(p[:room])
		return room, errors.New("connection reset by peer")
	}
	return w.written.Write(p)
}

type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (f *flushRecorder) Flush() { f.flushes++ }

func TestCopyExactSize(t *testing.T) {
	payload := strings.Repeat("abcdefghij", 10)
	var dst bytes.Buffer

	n, err := Copy(context.Background(), &dst, strings.NewReader(payload), int64(len(payload)), Options{ChunkSize: 7})
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if n != int64(len(payload)) || dst.String() != payload {
		t.Fatalf("expected %d bytes delivered intact, got %d", len(payload), n)
	}
}

func TestCopyStopsAtDeclaredSize(t *testing.T) {
	var dst bytes.Buffer
	n, err := Copy(context.Background(), &dst, strings.NewReader("0123456789extra"), 10, Options{})
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if n != 10 || dst.String() != "0123456789" {
		t.Fatalf("expected exactly 10 bytes, got %d %q", n, dst.String())
	}
}

func TestCopyZeroBytes(t *testing.T) {
	var dst bytes.Buffer
	n, err := Copy(context.Background(), &dst, strings.NewReader(""), 0, Options{})
	if err != nil || n != 0 {
		t.Fatalf("expected clean empty copy, got n=%d err=%v", n, err)
	}
}

func TestCopyShortSource(t *testing.T) {
	var dst bytes.Buffer
	n, err := Copy(context.Background(), &dst, strings.NewReader("abc"), 10, Options{ChunkSize: 2})
	if !errors.Is(err, ErrShortRead) {
		t.Fatalf("expected ErrShortRead, got %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 delivered bytes, got %d", n)
	}
}

func TestCopySourceFailure(t *testing.T) {
	var dst bytes.Buffer
	src := io.MultiReader(strings.NewReader("abcd"), iotest.ErrReader(errors.New("disk gone")))
	n, err := Copy(context.Background(), &dst, src, 10, Options{ChunkSize: 4})
	if !errors.Is(err, ErrSourceFailed) {
		t.Fatalf("expected ErrSourceFailed, got %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 delivered bytes, got %d", n)
	}
}

func TestCopyReceiverGoneAfterThreeBytes(t *testing.T) {
	dst := &brokenWriter{limit: 3}
	n, err := Copy(context.Background(), dst, strings.NewReader("0123456789"), 10, Options{ChunkSize: 2})
	if !errors.Is(err, ErrReceiverGone) {
		t.Fatalf("expected ErrReceiverGone, got %v", err)
	}
	if n != 3 || dst.written.String() != "012" {
		t.Fatalf("expected 3 bytes before failure, got %d %q", n, dst.written.String())
	}
}

func TestCopyHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var dst bytes.Buffer

	n, err := Copy(ctx, &dst, strings.NewReader("0123456789"), 10, Options{
		ChunkSize: 2,
		Progress: func(delivered int64) {
			if delivered >= 4 {
				cancel()
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 bytes before cancellation, got %d", n)
	}
}

func TestCopyFlushesAndReportsProgress(t *testing.T) {
	dst := &flushRecorder{}
	var progress []int64

	_, err := Copy(context.Background(), dst, strings.NewReader("0123456789"), 10, Options{
		ChunkSize: 4,
		Progress:  func(delivered int64) { progress = append(progress, delivered) },
	})
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if dst.flushes != 3 {
		t.Fatalf("expected 3 flushes, got %d", dst.flushes)
	}
	want := []int64{4, 8, 10}
	if len(progress) != len(want) {
		t.Fatalf("expected progress %v, got %v", want, progress)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("expected progress %v, got %v", want, progress)
		}
	}
}

func TestCopyRejectsBadArguments(t *testing.T) {
	var dst bytes.Buffer
	if _, err := Copy(context.Background(), &dst, strings.NewReader(""), -1, Options{}); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("negative size: expected ErrInvalidSize, got %v", err)
	}
	if _, err := Copy(context.Background(), &dst, strings.NewReader("x"), 1, Options{ChunkSize: MaxChunkSize + 1}); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("oversized chunk: expected ErrInvalidSize, got %v", err)
	}
}
