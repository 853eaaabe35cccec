package fileshare

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	internalaudit "github.com/SuperSection/fileshare/internal/audit"
	"github.com/SuperSection/fileshare/internal/rate"
	"github.com/SuperSection/fileshare/internal/staging"
	"github.com/SuperSection/fileshare/internal/stores"
	"github.com/SuperSection/fileshare/session"
	"github.com/SuperSection/fileshare/token"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder assembles an [Engine].
//
// Builder instances are intended to be configured during initialization and are single-use:
// a second Build call fails.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	logger    logrus.FieldLogger
	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder seeded with [DefaultConfig]. It performs no I/O.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The Builder keeps its own copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for outcome receipts and throttling. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. Defaults to the logrus standard logger.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink routes audit events to sink. Events flow only when Config.Audit.Enabled
// is true; a nil sink with auditing enabled falls back to a [LogrusSink] over the
// engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, prepares the staging directory, wires every
// component, and starts the expiry reaper. Call [Engine.Close] to stop it.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	alloc, err := session.NewAllocator(
		session.Policy(cfg.InviteCode.Policy),
		session.Code(cfg.InviteCode.Min),
		session.Code(cfg.InviteCode.Max),
	)
	if err != nil {
		return nil, err
	}

	area, err := staging.New(cfg.Upload.Dir, cfg.Transfer.ChunkSize)
	if err != nil {
		return nil, err
	}

	tokenKey := cfg.Token.PrivateKey
	ephemeralKey := cfg.Token.SigningMethod == string(token.MethodHS256) && len(tokenKey) == 0
	if ephemeralKey {
		tokenKey = make([]byte, 32)
		if _, err := rand.Read(tokenKey); err != nil {
			return nil, fmt.Errorf("generate owner token key: %w", err)
		}
		logger.WithFields(logrus.Fields{
			"function": "Build",
		}).Warn("no owner token key configured; tokens will not survive a restart")
	}
	tokens, err := token.NewManager(token.Config{
		TTL:           cfg.Token.TTL,
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    tokenKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
	})
	if err != nil {
		return nil, err
	}

	limiter := rate.New(b.redis, rate.Config{
		EnableFetchThrottle:  cfg.Security.EnableFetchThrottle,
		MaxFetchFailures:     cfg.Security.MaxFetchFailures,
		FetchFailureWindow:   cfg.Security.FetchFailureWindow,
		EnableUploadThrottle: cfg.Security.EnableUploadThrottle,
		MaxUploads:           cfg.Security.MaxUploadsPerWindow,
		UploadWindow:         cfg.Security.UploadWindow,
	})

	sink := b.auditSink
	if sink == nil {
		sink = internalaudit.NewLogrusSink(logger)
	}

	e := &Engine{
		config:   cfg,
		store:    session.NewStore(alloc),
		staging:  area,
		receipts: stores.NewReceiptStore(b.redis, cfg.Receipts.RedisPrefix),
		limiter:  limiter,
		tokens:   tokens,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		now:     time.Now,
		active:  make(map[string]*Download),
		stop:    make(chan struct{}),

		ephemeralKey: ephemeralKey,
	}

	e.startReaper()
	b.built = true

	logger.WithFields(logrus.Fields{
		"function":    "Build",
		"code_min":    cfg.InviteCode.Min,
		"code_max":    cfg.InviteCode.Max,
		"policy":      cfg.InviteCode.Policy,
		"session_ttl": cfg.Session.TTL.String(),
		"upload_dir":  area.Root(),
	}).Info("fileshare engine ready")

	return e, nil
}
