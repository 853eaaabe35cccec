package httpapi

import (
	"time"

	fileshare "github.com/SuperSection/fileshare"
)

// UploadResponse is the JSON body returned by POST /upload. Port repeats Code for
// clients that still read the older key.
type UploadResponse struct {
	Port       int       `json:"port"`
	Code       int       `json:"code"`
	SessionID  string    `json:"session_id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	ExpiresAt  time.Time `json:"expires_at"`
	OwnerToken string    `json:"owner_token"`
}

// StatusResponse is the JSON body returned by GET /status. ExpiresAt is set only while
// the session is live.
type StatusResponse struct {
	SessionID  string     `json:"session_id"`
	Code       int        `json:"code"`
	Filename   string     `json:"filename"`
	Size       int64      `json:"size"`
	Delivered  int64      `json:"delivered"`
	State      string     `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Live       bool       `json:"live"`
}

// ErrorResponse is the JSON body of every non-2xx response except a missing download.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func newUploadResponse(t *fileshare.Ticket) UploadResponse {
	return UploadResponse{
		Port:       int(t.Code),
		Code:       int(t.Code),
		SessionID:  t.SessionID,
		Filename:   t.Filename,
		Size:       t.Size,
		ExpiresAt:  t.ExpiresAt.UTC(),
		OwnerToken: t.OwnerToken,
	}
}

func newStatusResponse(r *fileshare.StatusReport) StatusResponse {
	out := StatusResponse{
		SessionID: r.SessionID,
		Code:      int(r.Code),
		Filename:  r.Filename,
		Size:      r.Size,
		Delivered: r.Delivered,
		State:     r.State.String(),
		CreatedAt: r.CreatedAt.UTC(),
		Live:      r.Live,
	}
	if !r.ExpiresAt.IsZero() {
		expires := r.ExpiresAt.UTC()
		out.ExpiresAt = &expires
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt.UTC()
		out.FinishedAt = &finished
	}
	return out
}
