package session

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	// MinCode is the lowest invite code that can ever be issued.
	MinCode Code = 1
	// MaxCode is the highest invite code that can ever be issued.
	MaxCode Code = 65535
)

// ErrInvalidCode is returned by [ParseCode] for input outside [MinCode, MaxCode].
var ErrInvalidCode = errors.New("invite code must be an integer between 1 and 65535")

// Code is a numeric invite code. The zero value is never issued.
type Code uint16

// Valid reports whether c lies in the issuable range.
func (c Code) Valid() bool {
	return c >= MinCode && c <= MaxCode
}

func (c Code) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// ParseCode parses a decimal invite code and checks its range.
func ParseCode(raw string) (Code, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidCode
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < int64(MinCode) || n > int64(MaxCode) {
		return 0, ErrInvalidCode
	}
	return Code(n), nil
}

// State is the lifecycle position of a transfer session.
type State uint8

const (
	// StatePending means the payload is staged and the code is waiting for a receiver.
	StatePending State = iota + 1
	// StateActive means a receiver claimed the code and is reading the payload.
	StateActive
	// StateCompleted means every byte was delivered. Terminal.
	StateCompleted
	// StateExpired means the validity window passed before delivery finished. Terminal.
	StateExpired
	// StateFailed means the source or the receiver broke mid-stream. Terminal.
	StateFailed
)

var stateNames = map[State]string{
	StatePending:   "pending",
	StateActive:    "active",
	StateCompleted: "completed",
	StateExpired:   "expired",
	StateFailed:    "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateExpired || s == StateFailed
}

// ParseState is the inverse of [State.String].
func ParseState(name string) (State, error) {
	for state, n := range stateNames {
		if n == name {
			return state, nil
		}
	}
	return 0, errors.New("unknown session state: " + name)
}

// Payload is the byte source bound to a session. A session is its only owner; the store
// never reads from it.
type Payload interface {
	io.Reader
	// Release closes and discards the underlying storage. Safe to call more than once.
	Release() error
}

// Session is a point-in-time copy of a store record.
type Session struct {
	ID          string
	Code        Code
	Filename    string
	Size        int64
	State       State
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ActivatedAt time.Time
	FinishedAt  time.Time

	Payload Payload

	abort func()
}

// Abort cancels the in-flight stream bound to an Active session, if any.
func (s Session) Abort() {
	if s.abort != nil {
		s.abort()
	}
}
