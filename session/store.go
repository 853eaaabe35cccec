package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no Pending record is bound to a code. Unknown, consumed,
// and expired codes are deliberately indistinguishable.
var ErrNotFound = errors.New("session not found")

// ErrInvalidSession is returned by [Store.Create] for an empty filename or negative size.
var ErrInvalidSession = errors.New("invalid session parameters")

// Store is the in-memory registry mapping invite codes to live session records.
//
// A single store-wide mutex serializes every operation: allocation plus registration,
// the Pending check plus the Active transition, and terminal removal plus code release
// each happen under one critical section.
type Store struct {
	mu       sync.Mutex
	alloc    Allocator
	sessions map[Code]*Session
	newID    func() string
}

// NewStore creates a [Store] that draws codes from alloc.
func NewStore(alloc Allocator) *Store {
	return &Store{
		alloc:    alloc,
		sessions: make(map[Code]*Session),
		newID:    uuid.NewString,
	}
}

// Create allocates a code and registers a Pending record for payload in one step.
// The returned copy carries the allocated code and the record's session ID.
func (s *Store) Create(filename string, size int64, payload Payload, now time.Time, ttl time.Duration) (Session, error) {
	if filename == "" || size < 0 || payload == nil || ttl <= 0 {
		return Session{}, ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.alloc.Allocate()
	if err != nil {
		return Session{}, err
	}
	if _, exists := s.sessions[code]; exists {
		// allocator and map disagree; never hand out a bound code
		return Session{}, ErrExhausted
	}

	rec := &Session{
		ID:        s.newID(),
		Code:      code,
		Filename:  filename,
		Size:      size,
		State:     StatePending,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Payload:   payload,
	}
	s.sessions[code] = rec

	return *rec, nil
}

// Activate claims a Pending, unexpired record for a receiver and moves it to Active.
// The record's deadline is re-armed to now+transferTTL; abort is invoked if the reaper
// expires the record while it is still Active. Any other case yields [ErrNotFound].
func (s *Store) Activate(code Code, now time.Time, transferTTL time.Duration, abort func()) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[code]
	if !ok || rec.State != StatePending || !now.Before(rec.ExpiresAt) {
		return Session{}, ErrNotFound
	}

	rec.State = StateActive
	rec.ActivatedAt = now
	if transferTTL > 0 {
		rec.ExpiresAt = now.Add(transferTTL)
	}
	rec.abort = abort

	return *rec, nil
}

// Finish moves the record identified by (code, id) to a terminal state, removes it, and
// releases its code. It reports false when the record is already gone, belongs to a
// different session, or state is not terminal.
func (s *Store) Finish(code Code, id string, state State, now time.Time) (Session, bool) {
	if !state.Terminal() {
		return Session{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[code]
	if !ok || rec.ID != id {
		return Session{}, false
	}
	return s.retireLocked(rec, state, now), true
}

// Expire retires every Pending or Active record whose deadline is not after now.
func (s *Store) Expire(now time.Time) []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []Session
	for _, rec := range s.sessions {
		if now.Before(rec.ExpiresAt) {
			continue
		}
		expired = append(expired, s.retireLocked(rec, StateExpired, now))
	}
	return expired
}

// Drain retires every live record as Failed. Used on shutdown.
func (s *Store) Drain(now time.Time) []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	drained := make([]Session, 0, len(s.sessions))
	for _, rec := range s.sessions {
		drained = append(drained, s.retireLocked(rec, StateFailed, now))
	}
	return drained
}

func (s *Store) retireLocked(rec *Session, state State, now time.Time) Session {
	rec.State = state
	rec.FinishedAt = now
	delete(s.sessions, rec.Code)
	s.alloc.Release(rec.Code)
	out := *rec
	rec.Payload = nil
	rec.abort = nil
	return out
}

// Get returns a copy of the live record bound to code.
func (s *Store) Get(code Code) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[code]
	if !ok {
		return Session{}, false
	}
	out := *rec
	out.Payload = nil
	out.abort = nil
	return out, true
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Free returns how many codes the allocator can still hand out.
func (s *Store) Free() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc.Free()
}

// Codes returns the live codes in ascending order.
func (s *Store) Codes() []Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := make([]Code, 0, len(s.sessions))
	for code := range s.sessions {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Consistent reports whether every live record's code is marked in use by the allocator
// and the allocator's free count matches the record count.
func (s *Store) Consistent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for code, rec := range s.sessions {
		if rec.Code != code || !s.alloc.InUse(code) {
			return false
		}
	}
	if a, ok := s.alloc.(*bitmapAllocator); ok {
		return a.span()-a.free == len(s.sessions)
	}
	return true
}
