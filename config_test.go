package fileshare

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Fatalf("expected 30m TTL, got %v", cfg.Session.TTL)
	}
	if cfg.InviteCode.Min != 1 || cfg.InviteCode.Max != 65535 {
		t.Fatalf("unexpected default code range [%d, %d]", cfg.InviteCode.Min, cfg.InviteCode.Max)
	}
	if cfg.Transfer.ChunkSize != 32<<10 {
		t.Fatalf("expected 32KiB chunks, got %d", cfg.Transfer.ChunkSize)
	}
}

func TestConfigValidateEnums(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name: "sequential policy valid",
			mutate: func(c *Config) {
				c.InviteCode.Policy = "sequential"
			},
			wantValid: true,
		},
		{
			name: "unknown policy invalid",
			mutate: func(c *Config) {
				c.InviteCode.Policy = "lottery"
			},
			wantValid: false,
		},
		{
			name: "zero min code invalid",
			mutate: func(c *Config) {
				c.InviteCode.Min = 0
			},
			wantValid: false,
		},
		{
			name: "inverted code range invalid",
			mutate: func(c *Config) {
				c.InviteCode.Min = 100
				c.InviteCode.Max = 10
			},
			wantValid: false,
		},
		{
			name: "single code range valid",
			mutate: func(c *Config) {
				c.InviteCode.Min = 42
				c.InviteCode.Max = 42
			},
			wantValid: true,
		},
		{
			name: "ed25519 without key invalid",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "ed25519"
			},
			wantValid: false,
		},
		{
			name: "short hs256 key invalid",
			mutate: func(c *Config) {
				c.Token.PrivateKey = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "rs256 invalid",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "chunk size above cap invalid",
			mutate: func(c *Config) {
				c.Transfer.ChunkSize = 2 << 20
			},
			wantValid: false,
		},
		{
			name: "reap interval above ttl invalid",
			mutate: func(c *Config) {
				c.Session.TTL = time.Second
				c.Session.ReapInterval = time.Minute
			},
			wantValid: false,
		},
		{
			name: "fetch throttle needs budget",
			mutate: func(c *Config) {
				c.Security.MaxFetchFailures = 0
			},
			wantValid: false,
		},
		{
			name: "disabled throttle ignores budget",
			mutate: func(c *Config) {
				c.Security.EnableFetchThrottle = false
				c.Security.MaxFetchFailures = 0
			},
			wantValid: true,
		},
		{
			name: "json logging valid",
			mutate: func(c *Config) {
				c.Logging.Format = "json"
			},
			wantValid: true,
		},
		{
			name: "xml logging invalid",
			mutate: func(c *Config) {
				c.Logging.Format = "xml"
			},
			wantValid: false,
		},
		{
			name: "negative max file size invalid",
			mutate: func(c *Config) {
				c.Upload.MaxFileSize = -1
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")

	cloned := cloneConfig(cfg)
	cfg.Token.PrivateKey[0] = 'X'

	if cloned.Token.PrivateKey[0] != '0' {
		t.Fatal("clone shares key storage with the original")
	}
}
