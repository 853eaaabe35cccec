package fileshare

import (
	"errors"
	"strings"
	"time"

	"github.com/SuperSection/fileshare/session"
	"github.com/SuperSection/fileshare/transfer"
)

// Config defines every tunable of an [Engine].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Session    SessionConfig
	InviteCode InviteCodeConfig
	Transfer   TransferConfig
	Upload     UploadConfig
	Receipts   ReceiptConfig
	Token      TokenConfig
	Security   SecurityConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Logging    LoggingConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig bounds how long a session may live.
type SessionConfig struct {
	// TTL is the window in which a Pending session may be fetched.
	TTL time.Duration
	// TransferTimeout re-arms the deadline when a receiver claims the session.
	TransferTimeout time.Duration
	// ReapInterval is how often expired sessions are swept.
	ReapInterval time.Duration
}

/*
====================================
INVITE CODE CONFIG
====================================
*/

// InviteCodeConfig narrows the issuable code range and picks the allocation policy.
type InviteCodeConfig struct {
	Min    uint16
	Max    uint16
	Policy string // "random" (default) or "sequential"
}

/*
====================================
TRANSFER CONFIG
====================================
*/

// TransferConfig tunes the chunked copy used for staging and delivery.
type TransferConfig struct {
	ChunkSize int
}

/*
====================================
UPLOAD CONFIG
====================================
*/

// UploadConfig controls where payloads are staged and how large they may be.
type UploadConfig struct {
	// Dir defaults to os.TempDir()/fileshare-uploads when empty.
	Dir string
	// MaxFileSize rejects larger uploads. Zero disables the limit.
	MaxFileSize int64
}

/*
====================================
RECEIPT CONFIG
====================================
*/

// ReceiptConfig controls how long terminal outcomes stay queryable in Redis.
type ReceiptConfig struct {
	RedisPrefix string
	TTL         time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls owner token signing. An empty PrivateKey with "hs256" makes
// Build generate a random per-process key.
type TokenConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the per-IP throttles. Invite codes are short enough to guess,
// so failed lookups are budgeted.
type SecurityConfig struct {
	EnableFetchThrottle  bool
	MaxFetchFailures     int
	FetchFailureWindow   time.Duration
	EnableUploadThrottle bool
	MaxUploadsPerWindow  int
	UploadWindow         time.Duration
	// TrustProxy makes the HTTP layer read the client IP from X-Forwarded-For.
	TrustProxy bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
LOGGING CONFIG
====================================
*/

// LoggingConfig is applied by binaries to the logrus logger they hand to the Builder.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:             30 * time.Minute,
			TransferTimeout: 30 * time.Minute,
			ReapInterval:    15 * time.Second,
		},
		InviteCode: InviteCodeConfig{
			Min:    uint16(session.MinCode),
			Max:    uint16(session.MaxCode),
			Policy: string(session.PolicyRandom),
		},
		Transfer: TransferConfig{
			ChunkSize: transfer.DefaultChunkSize,
		},
		Upload: UploadConfig{
			Dir:         "",
			MaxFileSize: 2 << 30,
		},
		Receipts: ReceiptConfig{
			RedisPrefix: "fsr",
			TTL:         24 * time.Hour,
		},
		Token: TokenConfig{
			TTL:           24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "fileshare",
		},
		Security: SecurityConfig{
			EnableFetchThrottle:  true,
			MaxFetchFailures:     20,
			FetchFailureWindow:   time.Minute,
			EnableUploadThrottle: true,
			MaxUploadsPerWindow:  30,
			UploadWindow:         time.Minute,
			TrustProxy:           false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting in c.
func (c *Config) Validate() error {
	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.TransferTimeout <= 0 {
		return errors.New("Session TransferTimeout must be > 0")
	}
	if c.Session.ReapInterval <= 0 {
		return errors.New("Session ReapInterval must be > 0")
	}
	if c.Session.ReapInterval > c.Session.TTL {
		return errors.New("Session ReapInterval must be <= TTL")
	}

	// Invite codes
	if c.InviteCode.Min < uint16(session.MinCode) {
		return errors.New("InviteCode Min must be >= 1")
	}
	if c.InviteCode.Min > c.InviteCode.Max {
		return errors.New("InviteCode Min must be <= Max")
	}
	switch session.Policy(c.InviteCode.Policy) {
	case session.PolicyRandom, session.PolicySequential:
	default:
		return errors.New("InviteCode Policy must be 'random' or 'sequential'")
	}

	// Transfer
	if c.Transfer.ChunkSize <= 0 || c.Transfer.ChunkSize > transfer.MaxChunkSize {
		return errors.New("Transfer ChunkSize must be in (0, 1MiB]")
	}

	// Upload
	if c.Upload.MaxFileSize < 0 {
		return errors.New("Upload MaxFileSize must be >= 0")
	}

	// Receipts
	if c.Receipts.TTL <= 0 {
		return errors.New("Receipts TTL must be > 0")
	}
	if strings.TrimSpace(c.Receipts.RedisPrefix) == "" {
		return errors.New("Receipts RedisPrefix must not be empty")
	}

	// Token
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	switch c.Token.SigningMethod {
	case "hs256":
		if len(c.Token.PrivateKey) > 0 && len(c.Token.PrivateKey) < 32 {
			return errors.New("hs256 PrivateKey must be at least 32 bytes")
		}
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	default:
		return errors.New("unsupported Token signing method")
	}

	// Security
	if c.Security.EnableFetchThrottle {
		if c.Security.MaxFetchFailures <= 0 {
			return errors.New("Security MaxFetchFailures must be > 0")
		}
		if c.Security.FetchFailureWindow <= 0 {
			return errors.New("Security FetchFailureWindow must be > 0")
		}
	}
	if c.Security.EnableUploadThrottle {
		if c.Security.MaxUploadsPerWindow <= 0 {
			return errors.New("Security MaxUploadsPerWindow must be > 0")
		}
		if c.Security.UploadWindow <= 0 {
			return errors.New("Security UploadWindow must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Logging
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("Logging Level must be debug, info, warn, or error")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return errors.New("Logging Format must be 'text' or 'json'")
	}

	return nil
}
