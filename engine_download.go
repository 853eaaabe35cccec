package fileshare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SuperSection/fileshare/internal/rate"
	"github.com/SuperSection/fileshare/session"
	"github.com/SuperSection/fileshare/transfer"
	"github.com/sirupsen/logrus"
)

// FetchSession describes the fetchsession operation and its observable behavior.
//
// FetchSession claims the session bound to code for the caller. Exactly one caller per
// session succeeds; unknown, consumed, and expired codes all report [ErrNotFound]. A
// code outside [1, 65535] fails with [ErrInvalidInput] before any lookup. Repeated
// failed lookups from one client IP yield [ErrFetchRateLimited].
//
// The caller must Close the returned [Download] on every path; Close decides the
// session's terminal state and releases the staged payload.
func (e *Engine) FetchSession(ctx context.Context, code InviteCode) (*Download, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !code.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, session.ErrInvalidCode)
	}

	log := e.logger.WithFields(logrus.Fields{
		"function":    "FetchSession",
		"invite_code": code,
	})

	ip := clientIPFromContext(ctx)
	if err := e.limiter.CheckFetch(ctx, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricFetchRateLimited)
			e.emitRateLimit(ctx, "fetch", func() map[string]string {
				return map[string]string{"invite_code": code.String()}
			})
			return nil, ErrFetchRateLimited
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	streamCtx, cancel := context.WithCancelCause(context.Background())
	now := e.now()
	rec, err := e.store.Activate(code, now, e.config.Session.TransferTimeout, func() {
		cancel(ErrSessionExpired)
	})
	if err != nil {
		cancel(nil)
		e.metricInc(MetricFetchNotFound)
		if ferr := e.limiter.IncrementFetchFailure(ctx, ip); ferr != nil && !errors.Is(ferr, rate.ErrRateLimited) {
			log.WithError(ferr).Warn("record failed lookup")
		}
		e.emitAudit(ctx, auditEventFetchNotFound, false, "", code, "", ErrNotFound, nil)
		log.Debug("invite code not found")
		return nil, ErrNotFound
	}

	if err := e.limiter.ResetFetch(ctx, ip); err != nil {
		log.WithError(err).Warn("reset lookup failures")
	}

	d := &Download{
		engine:  e,
		rec:     rec,
		payload: rec.Payload,
		ctx:     streamCtx,
		cancel:  cancel,
		started: now,
		auditIP: ip,
	}
	d.rec.Payload = nil
	e.track(d)

	e.metricInc(MetricFetchSuccess)
	e.emitAudit(ctx, auditEventSessionActivated, true, rec.ID, rec.Code, rec.Filename, nil, nil)
	log.WithFields(logrus.Fields{
		"session_id": rec.ID,
		"size":       rec.Size,
	}).Info("session activated")

	return d, nil
}

// Download is a receiver's exclusive claim on one session's payload.
//
// Read and Stream must not be used concurrently. Close must be called exactly once on
// every path; later calls return the first result.
type Download struct {
	engine  *Engine
	rec     session.Session
	payload session.Payload
	ctx     context.Context
	cancel  context.CancelCauseFunc
	started time.Time
	auditIP string

	delivered atomic.Int64

	mu      sync.Mutex
	failure error

	closeOnce sync.Once
	closeErr  error
}

func (d *Download) Filename() string { return d.rec.Filename }

func (d *Download) Size() int64 { return d.rec.Size }

func (d *Download) Code() InviteCode { return d.rec.Code }

func (d *Download) SessionID() string { return d.rec.ID }

// Delivered returns how many payload bytes have been handed to the receiver so far.
func (d *Download) Delivered() int64 { return d.delivered.Load() }

func (d *Download) setFailure(err error) {
	d.mu.Lock()
	if d.failure == nil {
		d.failure = err
	}
	d.mu.Unlock()
}

func (d *Download) failureErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failure
}

// Read implements io.Reader over the remaining payload bytes. It returns io.EOF once
// Size bytes were read, and an error wrapping [ErrTransferFailed] or
// [ErrSessionExpired] when the payload breaks or the session is aborted.
func (d *Download) Read(p []byte) (int, error) {
	remaining := d.rec.Size - d.delivered.Load()
	if remaining <= 0 {
		return 0, io.EOF
	}
	if err := d.abortErr(); err != nil {
		d.setFailure(err)
		return 0, err
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err := d.payload.Read(p)
	if n > 0 {
		d.delivered.Add(int64(n))
		d.engine.metrics.Add(MetricBytesDelivered, uint64(n))
	}
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		if d.delivered.Load() == d.rec.Size {
			return n, io.EOF
		}
		err = fmt.Errorf("%w: %v", ErrTransferFailed, transfer.ErrShortRead)
	default:
		err = fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	d.setFailure(err)
	return n, err
}

// Stream writes the remaining payload bytes to w in chunks, flushing after each one
// when w supports it. Canceling ctx, a failing w, or a failing payload all yield an
// error wrapping [ErrTransferFailed]; a reaper abort yields [ErrSessionExpired].
func (d *Download) Stream(ctx context.Context, w io.Writer) (int64, error) {
	if err := d.abortErr(); err != nil {
		d.setFailure(err)
		return 0, err
	}

	streamCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(d.ctx, func() {
		cancel(context.Cause(d.ctx))
	})
	defer stop()

	base := d.delivered.Load()
	n, err := transfer.Copy(streamCtx, w, d.payload, d.rec.Size-base, transfer.Options{
		ChunkSize: d.engine.config.Transfer.ChunkSize,
		Progress: func(total int64) {
			d.delivered.Store(base + total)
		},
	})
	d.delivered.Store(base + n)
	if n > 0 {
		d.engine.metrics.Add(MetricBytesDelivered, uint64(n))
	}
	if err == nil {
		return n, nil
	}

	if abort := d.abortErr(); abort != nil {
		err = abort
	} else if !errors.Is(err, ErrTransferFailed) {
		err = fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	d.setFailure(err)
	return n, err
}

func (d *Download) abortErr() error {
	cause := context.Cause(d.ctx)
	switch {
	case cause == nil:
		return nil
	case errors.Is(cause, ErrSessionExpired):
		return ErrSessionExpired
	default:
		return fmt.Errorf("%w: %w", ErrTransferFailed, cause)
	}
}

// Close moves the session to Completed when every byte was delivered without error
// and to Failed otherwise, releases the staged payload, and records the outcome. It
// returns nil only for a completed transfer.
func (d *Download) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.engine.finishDownload(d)
	})
	return d.closeErr
}

func (e *Engine) finishDownload(d *Download) error {
	delivered := d.Delivered()
	failure := d.failureErr()
	abort := d.abortErr()
	d.cancel(nil)

	state := StateCompleted
	if failure != nil || delivered != d.rec.Size {
		state = StateFailed
	}

	now := e.now()
	final, ok := e.store.Finish(d.rec.Code, d.rec.ID, state, now)
	e.untrack(d.rec.ID)

	log := e.logger.WithFields(logrus.Fields{
		"function":    "Download.Close",
		"invite_code": d.rec.Code,
		"session_id":  d.rec.ID,
		"delivered":   delivered,
		"size":        d.rec.Size,
	})

	if err := d.payload.Release(); err != nil {
		log.WithError(err).Warn("release staged payload")
	}

	if !ok {
		// reaper or shutdown already retired the session and recorded it
		if abort == nil {
			abort = ErrSessionExpired
		}
		log.WithError(abort).Info("download closed after session was retired")
		return abort
	}

	e.metrics.Observe(MetricTransferLatency, now.Sub(d.started))
	e.saveReceipt(context.Background(), final, delivered)

	ctx := WithClientIP(context.Background(), d.auditIP)
	metadata := func() map[string]string {
		return map[string]string{
			"delivered": fmt.Sprintf("%d", delivered),
			"size":      fmt.Sprintf("%d", d.rec.Size),
		}
	}

	if state == StateCompleted {
		e.metricInc(MetricTransferCompleted)
		e.emitAudit(ctx, auditEventTransferCompleted, true, final.ID, final.Code, final.Filename, nil, metadata)
		log.Info("transfer completed")
		return nil
	}

	err := failure
	if err == nil {
		err = fmt.Errorf("%w: delivered %d of %d bytes", ErrTransferFailed, delivered, d.rec.Size)
	}
	e.metricInc(MetricTransferFailed)
	e.emitAudit(ctx, auditEventTransferFailed, false, final.ID, final.Code, final.Filename, err, metadata)
	log.WithError(err).Warn("transfer failed")
	return err
}
