package stores

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestReceiptStore(t *testing.T) (*miniredis.Miniredis, *ReceiptStore) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, NewReceiptStore(rdb, "fsr")
}

func sampleReceipt() *Receipt {
	now := time.Now()
	return &Receipt{
		SessionID:  "5f1c1e8c-2d6f-4c1b-9a53-3c9d0f1e2a44",
		Code:       4242,
		Filename:   "résumé \"final\".pdf",
		Size:       1 << 20,
		Delivered:  1 << 20,
		State:      3,
		CreatedAt:  now.Add(-time.Minute).UnixNano(),
		FinishedAt: now.UnixNano(),
	}
}

func TestReceiptSaveGet(t *testing.T) {
	_, store := newTestReceiptStore(t)
	ctx := context.Background()
	want := sampleReceipt()

	if err := store.Save(ctx, want, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Get(ctx, want.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != *want {
		t.Fatalf("receipt mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestReceiptFirstWriteWins(t *testing.T) {
	_, store := newTestReceiptStore(t)
	ctx := context.Background()
	first := sampleReceipt()

	if err := store.Save(ctx, first, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := *first
	second.State = 5
	if err := store.Save(ctx, &second, time.Hour); !errors.Is(err, ErrReceiptExists) {
		t.Fatalf("expected ErrReceiptExists, got %v", err)
	}

	got, err := store.Get(ctx, first.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != first.State {
		t.Fatalf("second write replaced the receipt: state %d", got.State)
	}
}

func TestReceiptExpires(t *testing.T) {
	mr, store := newTestReceiptStore(t)
	ctx := context.Background()
	r := sampleReceipt()

	if err := store.Save(ctx, r, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, r.SessionID); !errors.Is(err, ErrReceiptNotFound) {
		t.Fatalf("expected ErrReceiptNotFound after TTL, got %v", err)
	}
}

func TestReceiptDelete(t *testing.T) {
	_, store := newTestReceiptStore(t)
	ctx := context.Background()
	r := sampleReceipt()

	if err := store.Save(ctx, r, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, r.SessionID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, r.SessionID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.Get(ctx, r.SessionID); !errors.Is(err, ErrReceiptNotFound) {
		t.Fatalf("expected ErrReceiptNotFound, got %v", err)
	}
}

func TestReceiptRedisDown(t *testing.T) {
	mr, store := newTestReceiptStore(t)
	mr.Close()

	err := store.Save(context.Background(), sampleReceipt(), time.Hour)
	if !errors.Is(err, ErrReceiptRedisUnavailable) {
		t.Fatalf("expected ErrReceiptRedisUnavailable, got %v", err)
	}
	if _, err := store.Get(context.Background(), "x"); !errors.Is(err, ErrReceiptRedisUnavailable) {
		t.Fatalf("expected ErrReceiptRedisUnavailable, got %v", err)
	}
}

func TestReceiptCorruptRecord(t *testing.T) {
	mr, store := newTestReceiptStore(t)
	if err := mr.Set("fsr:bad", "\x09garbage"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Get(context.Background(), "bad"); !errors.Is(err, ErrReceiptCorrupt) {
		t.Fatalf("expected ErrReceiptCorrupt, got %v", err)
	}
}

func TestDecodeReceiptRejectsTruncation(t *testing.T) {
	encoded, err := encodeReceipt(sampleReceipt())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := 0; i < len(encoded); i++ {
		if _, err := decodeReceipt(encoded[:i]); err == nil {
			t.Fatalf("truncation at %d decoded without error", i)
		}
	}
	if _, err := decodeReceipt(append(encoded, 0)); err == nil {
		t.Fatal("trailing byte decoded without error")
	}
}

func TestEncodeReceiptRejectsLongFields(t *testing.T) {
	r := sampleReceipt()
	r.Filename = strings.Repeat("x", maxReceiptString+1)
	if _, err := encodeReceipt(r); err == nil {
		t.Fatal("expected error for oversized filename")
	}
}
