package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// ErrExhausted is returned when every code in the allocator range is bound to a live session.
var ErrExhausted = errors.New("invite code space exhausted")

// Policy selects how the allocator picks the next free code.
type Policy string

const (
	// PolicyRandom probes random codes and falls back to a scan from a random offset.
	PolicyRandom Policy = "random"
	// PolicySequential walks the range as a ring starting after the last issued code.
	PolicySequential Policy = "sequential"
)

const randomProbes = 8

// Allocator hands out invite codes that are not bound to a live session.
//
// Implementations are not safe for concurrent use; the [Store] serializes every call
// under its own lock so allocation and registration form one atomic step.
type Allocator interface {
	Allocate() (Code, error)
	Release(code Code)
	InUse(code Code) bool
	Free() int
}

type bitmapAllocator struct {
	policy Policy
	min    Code
	max    Code
	used   []uint64
	free   int
	cursor Code
	intn   func(n int) (int, error)
}

// NewAllocator returns an allocator over [min, max] using the given policy.
func NewAllocator(policy Policy, min, max Code) (Allocator, error) {
	if !min.Valid() || !max.Valid() || min > max {
		return nil, fmt.Errorf("invalid invite code range [%d, %d]", min, max)
	}
	switch policy {
	case PolicyRandom, PolicySequential:
	default:
		return nil, fmt.Errorf("unsupported allocation policy %q", policy)
	}

	span := int(max-min) + 1
	return &bitmapAllocator{
		policy: policy,
		min:    min,
		max:    max,
		used:   make([]uint64, (span+63)/64),
		free:   span,
		cursor: min,
		intn:   cryptoIntn,
	}, nil
}

func cryptoIntn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

func (a *bitmapAllocator) span() int {
	return int(a.max-a.min) + 1
}

func (a *bitmapAllocator) index(code Code) (int, bool) {
	if code < a.min || code > a.max {
		return 0, false
	}
	return int(code - a.min), true
}

func (a *bitmapAllocator) isSet(i int) bool {
	return a.used[i/64]&(1<<(uint(i)%64)) != 0
}

func (a *bitmapAllocator) set(i int) {
	a.used[i/64] |= 1 << (uint(i) % 64)
	a.free--
}

func (a *bitmapAllocator) Allocate() (Code, error) {
	if a.free == 0 {
		return 0, ErrExhausted
	}

	var start int
	if a.policy == PolicyRandom {
		for i := 0; i < randomProbes; i++ {
			n, err := a.intn(a.span())
			if err != nil {
				return 0, err
			}
			if !a.isSet(n) {
				a.set(n)
				return a.min + Code(n), nil
			}
		}
		n, err := a.intn(a.span())
		if err != nil {
			return 0, err
		}
		start = n
	} else {
		start = int(a.cursor - a.min)
	}

	i, ok := a.scanFrom(start)
	if !ok {
		return 0, ErrExhausted
	}
	a.set(i)
	code := a.min + Code(i)
	if a.policy == PolicySequential {
		if code == a.max {
			a.cursor = a.min
		} else {
			a.cursor = code + 1
		}
	}
	return code, nil
}

// scanFrom finds the first free index at or after start, wrapping once around the range.
func (a *bitmapAllocator) scanFrom(start int) (int, bool) {
	span := a.span()
	for i := 0; i < span; i++ {
		pos := (start + i) % span
		if pos%64 == 0 && pos+64 <= span && a.used[pos/64] == ^uint64(0) {
			i += 63
			continue
		}
		if !a.isSet(pos) {
			return pos, true
		}
	}
	return 0, false
}

func (a *bitmapAllocator) Release(code Code) {
	i, ok := a.index(code)
	if !ok || !a.isSet(i) {
		return
	}
	a.used[i/64] &^= 1 << (uint(i) % 64)
	a.free++
}

func (a *bitmapAllocator) InUse(code Code) bool {
	i, ok := a.index(code)
	return ok && a.isSet(i)
}

func (a *bitmapAllocator) Free() int {
	return a.free
}
