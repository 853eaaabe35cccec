package fileshare

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventSessionCreated      = "session_created"
	auditEventUploadRejected      = "upload_rejected"
	auditEventSessionActivated    = "session_activated"
	auditEventFetchNotFound       = "fetch_not_found"
	auditEventTransferCompleted   = "transfer_completed"
	auditEventTransferFailed      = "transfer_failed"
	auditEventSessionExpired      = "session_expired"
	auditEventSessionDrained      = "session_drained"
	auditEventStatusQueried       = "status_queried"
	auditEventRateLimitTriggered  = "rate_limit_triggered"
	auditEventReceiptWriteFailure = "receipt_write_failure"
)

// AuditErrorCode is the stable error label carried by failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidInput   AuditErrorCode = "invalid_input"
	auditErrNotFound       AuditErrorCode = "not_found"
	auditErrExhausted      AuditErrorCode = "codes_exhausted"
	auditErrTransferFailed AuditErrorCode = "transfer_failed"
	auditErrExpired        AuditErrorCode = "session_expired"
	auditErrRateLimited    AuditErrorCode = "rate_limited"
	auditErrInvalidToken   AuditErrorCode = "invalid_token"
	auditErrUnavailable    AuditErrorCode = "backend_unavailable"
	auditErrClosed         AuditErrorCode = "engine_closed"
	auditErrCanceled       AuditErrorCode = "canceled"
	auditErrInternal       AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	sessionID string,
	code InviteCode,
	filename string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		SessionID:  sessionID,
		InviteCode: uint16(code),
		Filename:   filename,
		IP:         clientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", 0, "", nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrResourceExhausted):
		return auditErrExhausted
	case errors.Is(err, ErrSessionExpired):
		return auditErrExpired
	case errors.Is(err, ErrTransferFailed):
		return auditErrTransferFailed
	case errors.Is(err, ErrFetchRateLimited),
		errors.Is(err, ErrUploadRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrEngineClosed):
		return auditErrClosed
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	default:
		return auditErrInternal
	}
}
