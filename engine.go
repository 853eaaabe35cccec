package fileshare

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SuperSection/fileshare/disposition"
	internalaudit "github.com/SuperSection/fileshare/internal/audit"
	"github.com/SuperSection/fileshare/internal/rate"
	"github.com/SuperSection/fileshare/internal/staging"
	"github.com/SuperSection/fileshare/internal/stores"
	"github.com/SuperSection/fileshare/session"
	"github.com/SuperSection/fileshare/token"
	"github.com/sirupsen/logrus"
)

const receiptWriteTimeout = 2 * time.Second

// Engine owns the live session table, the staging area, and the expiry reaper.
//
// Engine instances are created by [Builder.Build] and are safe for concurrent use.
type Engine struct {
	config   Config
	store    *session.Store
	staging  *staging.Area
	receipts *stores.ReceiptStore
	limiter  *rate.Limiter
	tokens   *token.Manager
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	logger   logrus.FieldLogger
	now      func() time.Time

	ephemeralKey bool

	activeMu sync.Mutex
	active   map[string]*Download

	stop      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if e.closed.Load() {
		return ErrEngineClosed
	}
	return nil
}

// CreateSession describes the createsession operation and its observable behavior.
//
// CreateSession stages up.Body, binds it to a fresh invite code, and returns the
// sender's [Ticket]. It fails with [ErrInvalidInput] for a bad filename, a negative or
// oversized size, or a body whose length differs from up.Size; with
// [ErrUploadRateLimited] when the client IP is over budget; with [ErrTransferFailed]
// when the body breaks mid-upload; and with [ErrResourceExhausted] when no code is
// free. On any failure no session is visible and the staged bytes are removed.
func (e *Engine) CreateSession(ctx context.Context, up Upload) (*Ticket, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	log := e.logger.WithFields(logrus.Fields{
		"function": "CreateSession",
		"filename": up.Filename,
		"size":     up.Size,
	})

	if err := e.validateUpload(up); err != nil {
		e.metricInc(MetricUploadRejected)
		e.emitAudit(ctx, auditEventUploadRejected, false, "", 0, up.Filename, err, nil)
		log.WithError(err).Debug("upload rejected")
		return nil, err
	}

	ip := clientIPFromContext(ctx)
	if err := e.limiter.CheckUpload(ctx, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricUploadRateLimited)
			e.emitRateLimit(ctx, "upload", nil)
			return nil, ErrUploadRateLimited
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if e.store.Free() == 0 {
		e.metricInc(MetricCodesExhausted)
		e.emitAudit(ctx, auditEventUploadRejected, false, "", 0, up.Filename, ErrResourceExhausted, nil)
		log.Warn("invite code space exhausted")
		return nil, ErrResourceExhausted
	}

	started := e.now()
	staged, err := e.staging.Stage(ctx, up.Filename, up.Size, up.Body)
	if err != nil {
		err = mapStagingError(err)
		if errors.Is(err, ErrInvalidInput) {
			e.metricInc(MetricUploadRejected)
		} else {
			e.metricInc(MetricUploadFailed)
		}
		e.emitAudit(ctx, auditEventUploadRejected, false, "", 0, up.Filename, err, nil)
		log.WithError(err).Warn("upload staging failed")
		return nil, err
	}
	e.metrics.Observe(MetricUploadLatency, e.now().Sub(started))

	now := e.now()
	rec, err := e.store.Create(up.Filename, up.Size, staged, now, e.config.Session.TTL)
	if err != nil {
		_ = staged.Release()
		if errors.Is(err, session.ErrExhausted) {
			e.metricInc(MetricCodesExhausted)
			e.emitAudit(ctx, auditEventUploadRejected, false, "", 0, up.Filename, ErrResourceExhausted, nil)
			log.Warn("invite code space exhausted")
			return nil, ErrResourceExhausted
		}
		return nil, fmt.Errorf("register session: %w", err)
	}

	if e.closed.Load() {
		e.abandon(rec, now)
		return nil, ErrEngineClosed
	}

	ownerToken, err := e.tokens.Issue(rec.ID, uint16(rec.Code))
	if err != nil {
		e.abandon(rec, now)
		return nil, fmt.Errorf("issue owner token: %w", err)
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, rec.ID, rec.Code, rec.Filename, nil, func() map[string]string {
		return map[string]string{
			"size":       fmt.Sprintf("%d", rec.Size),
			"expires_at": rec.ExpiresAt.UTC().Format(time.RFC3339),
		}
	})
	log.WithFields(logrus.Fields{
		"invite_code": rec.Code,
		"session_id":  rec.ID,
	}).Info("session created")

	return &Ticket{
		Code:       rec.Code,
		SessionID:  rec.ID,
		Filename:   rec.Filename,
		Size:       rec.Size,
		ExpiresAt:  rec.ExpiresAt,
		OwnerToken: ownerToken,
	}, nil
}

func (e *Engine) validateUpload(up Upload) error {
	if err := disposition.Validate(up.Filename); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if up.Size < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidInput)
	}
	if limit := e.config.Upload.MaxFileSize; limit > 0 && up.Size > limit {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrInvalidInput, up.Size, limit)
	}
	if up.Body == nil {
		return fmt.Errorf("%w: missing body", ErrInvalidInput)
	}
	return nil
}

func mapStagingError(err error) error {
	switch {
	case errors.Is(err, staging.ErrSizeMismatch):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, staging.ErrSenderFailed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	default:
		return fmt.Errorf("stage upload: %w", err)
	}
}

// abandon retires a session nobody was told about.
func (e *Engine) abandon(rec session.Session, now time.Time) {
	final, ok := e.store.Finish(rec.Code, rec.ID, StateFailed, now)
	if !ok {
		return
	}
	if final.Payload != nil {
		_ = final.Payload.Release()
	}
}

// SessionStatus describes the sessionstatus operation and its observable behavior.
//
// SessionStatus resolves an owner token to the live state of its session or, once the
// session has left memory, to its recorded outcome. Use [StatusReport.Err] to turn an
// Expired or Failed outcome into an error.
func (e *Engine) SessionStatus(ctx context.Context, ownerToken string) (*StatusReport, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	e.metricInc(MetricStatusQuery)

	claims, err := e.tokens.Parse(ownerToken)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		e.emitAudit(ctx, auditEventStatusQueried, false, "", 0, "", err, nil)
		return nil, err
	}

	code := InviteCode(claims.Code)
	if rec, ok := e.store.Get(code); ok && rec.ID == claims.SID {
		report := &StatusReport{
			SessionID: rec.ID,
			Code:      rec.Code,
			Filename:  rec.Filename,
			Size:      rec.Size,
			State:     rec.State,
			CreatedAt: rec.CreatedAt,
			ExpiresAt: rec.ExpiresAt,
			Live:      true,
		}
		if d := e.tracked(rec.ID); d != nil {
			report.Delivered = d.Delivered()
		}
		return report, nil
	}

	receipt, err := e.receipts.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, stores.ErrReceiptNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	e.emitAudit(ctx, auditEventStatusQueried, true, receipt.SessionID, InviteCode(receipt.Code), receipt.Filename, nil, nil)
	return &StatusReport{
		SessionID:  receipt.SessionID,
		Code:       InviteCode(receipt.Code),
		Filename:   receipt.Filename,
		Size:       receipt.Size,
		Delivered:  receipt.Delivered,
		State:      SessionState(receipt.State),
		CreatedAt:  time.Unix(0, receipt.CreatedAt),
		FinishedAt: time.Unix(0, receipt.FinishedAt),
	}, nil
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return defaultConfig()
	}
	return cloneConfig(e.config)
}

// LiveSessions returns the number of sessions currently holding an invite code.
func (e *Engine) LiveSessions() int {
	if e == nil || e.store == nil {
		return 0
	}
	return e.store.Len()
}

// Close stops the reaper, fails every live session, cancels in-flight streams, and
// flushes the audit dispatcher. Later calls are no-ops.
func (e *Engine) Close() {
	if e == nil || e.store == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.stop)
		e.wg.Wait()

		e.activeMu.Lock()
		for _, d := range e.active {
			d.cancel(ErrEngineClosed)
		}
		e.activeMu.Unlock()

		drained := e.store.Drain(e.now())
		for _, rec := range drained {
			e.retire(rec)
		}
		if len(drained) > 0 {
			e.logger.WithFields(logrus.Fields{
				"function": "Close",
				"drained":  len(drained),
			}).Info("failed live sessions on shutdown")
		}

		e.audit.Close()
	})
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of every counter and enabled histogram.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
REAPER
====================================
*/

func (e *Engine) startReaper() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(e.config.Session.ReapInterval)
		defer ticker.Stop()

		for {
			select {
			case <-e.stop:
				return
			case <-ticker.C:
				e.reap(e.now())
			}
		}
	}()
}

// reap expires every session past its deadline and returns how many it retired.
// Running it twice for the same instant is a no-op the second time.
func (e *Engine) reap(now time.Time) int {
	expired := e.store.Expire(now)
	for _, rec := range expired {
		e.retire(rec)
	}
	if len(expired) > 0 {
		e.logger.WithFields(logrus.Fields{
			"function": "reap",
			"expired":  len(expired),
			"live":     e.store.Len(),
		}).Debug("expired sessions")
	}
	return len(expired)
}

// retire finishes the bookkeeping for a session the store already removed on the
// engine's behalf (expiry or shutdown).
func (e *Engine) retire(rec session.Session) {
	var delivered int64
	if !rec.ActivatedAt.IsZero() {
		// the Download handle owns the payload and releases it on Close
		if d := e.tracked(rec.ID); d != nil {
			delivered = d.Delivered()
		}
		rec.Abort()
	} else if rec.Payload != nil {
		if err := rec.Payload.Release(); err != nil {
			e.logger.WithFields(logrus.Fields{
				"function":   "retire",
				"session_id": rec.ID,
			}).WithError(err).Warn("release staged payload")
		}
	}

	eventType := auditEventSessionExpired
	if rec.State == StateExpired {
		e.metricInc(MetricSessionExpired)
	} else {
		eventType = auditEventSessionDrained
		e.metricInc(MetricTransferFailed)
	}

	e.saveReceipt(context.Background(), rec, delivered)
	e.emitAudit(context.Background(), eventType, false, rec.ID, rec.Code, rec.Filename, stateError(rec.State), nil)
	e.logger.WithFields(logrus.Fields{
		"function":    "retire",
		"invite_code": rec.Code,
		"session_id":  rec.ID,
		"state":       rec.State.String(),
	}).Info("session retired")
}

func stateError(state SessionState) error {
	switch state {
	case StateExpired:
		return ErrSessionExpired
	case StateFailed:
		return ErrTransferFailed
	default:
		return nil
	}
}

// saveReceipt records a terminal outcome. The first writer for a session wins; a
// failure is logged and counted but never fails the transfer.
func (e *Engine) saveReceipt(ctx context.Context, rec session.Session, delivered int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), receiptWriteTimeout)
	defer cancel()

	err := e.receipts.Save(ctx, &stores.Receipt{
		SessionID:  rec.ID,
		Code:       uint16(rec.Code),
		Filename:   rec.Filename,
		Size:       rec.Size,
		Delivered:  delivered,
		State:      uint8(rec.State),
		CreatedAt:  rec.CreatedAt.UnixNano(),
		FinishedAt: rec.FinishedAt.UnixNano(),
	}, e.config.Receipts.TTL)
	if err == nil || errors.Is(err, stores.ErrReceiptExists) {
		return
	}

	e.metricInc(MetricReceiptWriteFailed)
	e.emitAudit(ctx, auditEventReceiptWriteFailure, false, rec.ID, rec.Code, rec.Filename, fmt.Errorf("%w: %v", ErrBackendUnavailable, err), nil)
	e.logger.WithFields(logrus.Fields{
		"function":   "saveReceipt",
		"session_id": rec.ID,
		"state":      rec.State.String(),
	}).WithError(err).Warn("outcome receipt not recorded")
}

/*
====================================
ACTIVE DOWNLOADS
====================================
*/

func (e *Engine) track(d *Download) {
	e.activeMu.Lock()
	e.active[d.rec.ID] = d
	e.activeMu.Unlock()
}

func (e *Engine) untrack(id string) {
	e.activeMu.Lock()
	delete(e.active, id)
	e.activeMu.Unlock()
}

func (e *Engine) tracked(id string) *Download {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	return e.active[id]
}
