package fileshare

import "errors"

var (
	// ErrInvalidInput is returned for malformed codes, filenames, or sizes. No store is touched.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a code is unknown, already consumed, or expired.
	// The three cases are deliberately indistinguishable to the caller.
	ErrNotFound = errors.New("invite code not found")
	// ErrResourceExhausted is returned when every invite code is bound to a live session.
	ErrResourceExhausted = errors.New("no invite code available")
	// ErrTransferFailed is returned when the payload source or the receiver broke mid-stream.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrSessionExpired is returned when a session's validity window passed before delivery finished.
	ErrSessionExpired = errors.New("session expired")
	// ErrFetchRateLimited is returned when a client exceeded its failed-lookup budget.
	ErrFetchRateLimited = errors.New("fetch rate limited")
	// ErrUploadRateLimited is returned when a client exceeded its upload budget.
	ErrUploadRateLimited = errors.New("upload rate limited")
	// ErrBackendUnavailable wraps Redis failures in receipts and throttling.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrTokenInvalid is returned for owner tokens that fail verification.
	ErrTokenInvalid = errors.New("owner token invalid")
	// ErrEngineNotReady is returned when a method is called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrEngineClosed is returned after Close.
	ErrEngineClosed = errors.New("engine closed")
)
