package httpapi

import (
	"context"
	"errors"
	"net/http"

	fileshare "github.com/SuperSection/fileshare"
)

// Stable error codes carried in [ErrorResponse.Error].
const (
	CodeInvalidInput       = "invalid_input"
	CodeNotFound           = "not_found"
	CodeResourceExhausted  = "resource_exhausted"
	CodeTransferFailed     = "transfer_failed"
	CodeSessionExpired     = "session_expired"
	CodeFetchRateLimited   = "fetch_rate_limited"
	CodeUploadRateLimited  = "upload_rate_limited"
	CodeBackendUnavailable = "backend_unavailable"
	CodeTokenInvalid       = "token_invalid"
	CodeUnavailable        = "unavailable"
	CodeTooLarge           = "too_large"
	CodeMethodNotAllowed   = "method_not_allowed"
	CodeInternal           = "internal_error"
)

var errorTable = []struct {
	err    error
	code   string
	status int
}{
	{fileshare.ErrInvalidInput, CodeInvalidInput, http.StatusBadRequest},
	{fileshare.ErrNotFound, CodeNotFound, http.StatusNotFound},
	{fileshare.ErrResourceExhausted, CodeResourceExhausted, http.StatusServiceUnavailable},
	{fileshare.ErrFetchRateLimited, CodeFetchRateLimited, http.StatusTooManyRequests},
	{fileshare.ErrUploadRateLimited, CodeUploadRateLimited, http.StatusTooManyRequests},
	{fileshare.ErrBackendUnavailable, CodeBackendUnavailable, http.StatusServiceUnavailable},
	{fileshare.ErrTokenInvalid, CodeTokenInvalid, http.StatusUnauthorized},
	{fileshare.ErrEngineClosed, CodeUnavailable, http.StatusServiceUnavailable},
	{fileshare.ErrEngineNotReady, CodeUnavailable, http.StatusServiceUnavailable},
	{fileshare.ErrSessionExpired, CodeSessionExpired, http.StatusGone},
	{fileshare.ErrTransferFailed, CodeTransferFailed, http.StatusBadRequest},
}

// StatusCode maps an engine error to the HTTP status the transport answers with.
func StatusCode(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	for _, row := range errorTable {
		if errors.Is(err, row.err) {
			return row.status
		}
	}
	return http.StatusInternalServerError
}

// ErrorCode returns the stable code for err.
func ErrorCode(err error) string {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return CodeTooLarge
	}
	for _, row := range errorTable {
		if errors.Is(err, row.err) {
			return row.code
		}
	}
	if errors.Is(err, context.Canceled) {
		return CodeTransferFailed
	}
	return CodeInternal
}

// ErrorForCode is the inverse of [ErrorCode] for clients. The status is consulted
// when code is empty or unknown.
func ErrorForCode(code string, status int) error {
	for _, row := range errorTable {
		if row.code == code {
			return row.err
		}
	}
	switch {
	case code == CodeTooLarge, status == http.StatusRequestEntityTooLarge:
		return fileshare.ErrInvalidInput
	case code == CodeUnavailable:
		return fileshare.ErrEngineClosed
	}
	for _, row := range errorTable {
		if row.status == status {
			return row.err
		}
	}
	return nil
}
