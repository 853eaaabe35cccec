package fileshare

import (
	"fmt"
	"io"
	"time"

	"github.com/SuperSection/fileshare/session"
)

// InviteCode is the numeric handle a receiver presents to fetch a file.
type InviteCode = session.Code

// SessionState is the lifecycle position of a transfer session.
type SessionState = session.State

const (
	StatePending   = session.StatePending
	StateActive    = session.StateActive
	StateCompleted = session.StateCompleted
	StateExpired   = session.StateExpired
	StateFailed    = session.StateFailed
)

// ParseInviteCode parses a decimal invite code and checks it lies in [1, 65535].
// Out-of-range or non-numeric input yields [ErrInvalidInput].
func ParseInviteCode(raw string) (InviteCode, error) {
	code, err := session.ParseCode(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return code, nil
}

// Upload is the sender's input to [Engine.CreateSession]. Body must yield exactly Size bytes.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// Ticket is returned to the sender once the file is staged and a code is bound to it.
type Ticket struct {
	Code      InviteCode
	SessionID string
	Filename  string
	Size      int64
	ExpiresAt time.Time
	// OwnerToken authorizes [Engine.SessionStatus] for this session only.
	OwnerToken string
}

// StatusReport is the sender's view of a session, live or finished.
type StatusReport struct {
	SessionID  string
	Code       InviteCode
	Filename   string
	Size       int64
	Delivered  int64
	State      SessionState
	CreatedAt  time.Time
	ExpiresAt  time.Time // zero once the session is finished
	FinishedAt time.Time // zero while the session is live
	// Live is true while the session is still held in memory.
	Live bool
}

// Err maps a terminal failure state to its sentinel error. Pending, Active, and
// Completed report nil.
func (r *StatusReport) Err() error {
	if r == nil {
		return nil
	}
	switch r.State {
	case StateExpired:
		return ErrSessionExpired
	case StateFailed:
		return ErrTransferFailed
	default:
		return nil
	}
}
