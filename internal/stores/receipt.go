package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	receiptVersionV1 = 1
	maxReceiptString = 65535
)

var (
	ErrReceiptNotFound         = errors.New("receipt not found")
	ErrReceiptExists           = errors.New("receipt already recorded")
	ErrReceiptRedisUnavailable = errors.New("receipt redis unavailable")
	ErrReceiptCorrupt          = errors.New("receipt record corrupt")
)

// Receipt is the terminal outcome of one transfer session.
type Receipt struct {
	SessionID  string
	Code       uint16
	Filename   string
	Size       int64
	Delivered  int64
	State      uint8
	CreatedAt  int64
	FinishedAt int64
}

type ReceiptStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewReceiptStore(redisClient redis.UniversalClient, prefix string) *ReceiptStore {
	if prefix == "" {
		prefix = "fsr"
	}
	return &ReceiptStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ReceiptStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Save records r unless a receipt for the same session already exists.
func (s *ReceiptStore) Save(ctx context.Context, r *Receipt, ttl time.Duration) error {
	if r == nil || r.SessionID == "" {
		return errors.New("receipt requires a session id")
	}
	encoded, err := encodeReceipt(r)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.key(r.SessionID), encoded, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReceiptRedisUnavailable, err)
	}
	if !ok {
		return ErrReceiptExists
	}
	return nil
}

func (s *ReceiptStore) Get(ctx context.Context, sessionID string) (*Receipt, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrReceiptRedisUnavailable, err)
	}

	r, err := decodeReceipt(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReceiptCorrupt, err)
	}
	if r.SessionID != sessionID {
		return nil, ErrReceiptCorrupt
	}
	return r, nil
}

// Delete removes the receipt for sessionID. Missing receipts are not an error.
func (s *ReceiptStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrReceiptRedisUnavailable, err)
	}
	return nil
}

func encodeReceipt(r *Receipt) ([]byte, error) {
	if len(r.SessionID) > maxReceiptString || len(r.Filename) > maxReceiptString {
		return nil, errors.New("receipt field too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(receiptVersionV1)
	buf.WriteByte(r.State)

	for _, v := range []any{r.Code, r.Size, r.Delivered, r.CreatedAt, r.FinishedAt} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}
	for _, s := range []string{r.SessionID, r.Filename} {
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(s))); err != nil {
			return nil, err
		}
		buf.WriteString(s)
	}

	return buf.Bytes(), nil
}

func decodeReceipt(data []byte) (*Receipt, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != receiptVersionV1 {
		return nil, errors.New("invalid receipt version")
	}

	state, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	r := &Receipt{State: state}

	for _, v := range []any{&r.Code, &r.Size, &r.Delivered, &r.CreatedAt, &r.FinishedAt} {
		if err := binary.Read(reader, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}
	for _, dst := range []*string{&r.SessionID, &r.Filename} {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*dst = string(raw)
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in receipt")
	}

	return r, nil
}
