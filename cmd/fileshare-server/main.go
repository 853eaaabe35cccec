// Command fileshare-server runs the invite-code file sharing service.
//
// Configuration comes from flags, each falling back to an environment variable that
// may also be set in a .env file:
//
//	-addr          FILESHARE_ADDR          listen address (default :8080)
//	-redis-addr    REDIS_ADDR              Redis for receipts and throttles; empty starts miniredis
//	-upload-dir    FILESHARE_UPLOAD_DIR    staging directory
//	-signing-key   FILESHARE_SIGNING_KEY   HS256 owner token key (>= 32 bytes)
//	-log-level     FILESHARE_LOG_LEVEL     debug, info, warn, error
//	-log-format    FILESHARE_LOG_FORMAT    text or json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	fileshare "github.com/SuperSection/fileshare"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := fileshare.DefaultConfig()

	var (
		addr       = flag.String("addr", envOr("FILESHARE_ADDR", ":8080"), "listen address")
		redisAddr  = flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "redis address; empty starts an in-process miniredis")
		uploadDir  = flag.String("upload-dir", envOr("FILESHARE_UPLOAD_DIR", cfg.Upload.Dir), "staging directory")
		signingKey = flag.String("signing-key", os.Getenv("FILESHARE_SIGNING_KEY"), "owner token signing key")
		maxSize    = flag.Int64("max-file-size", envInt64("FILESHARE_MAX_FILE_SIZE", cfg.Upload.MaxFileSize), "largest accepted upload in bytes; 0 disables")
		ttl        = flag.Duration("session-ttl", envDuration("FILESHARE_SESSION_TTL", cfg.Session.TTL), "how long an unclaimed code stays valid")
		trustProxy = flag.Bool("trust-proxy", os.Getenv("FILESHARE_TRUST_PROXY") == "true", "read client IPs from X-Forwarded-For")
		audit      = flag.Bool("audit", os.Getenv("FILESHARE_AUDIT") == "true", "emit audit events to the log")
		logLevel   = flag.String("log-level", envOr("FILESHARE_LOG_LEVEL", cfg.Logging.Level), "debug, info, warn, error")
		logFormat  = flag.String("log-format", envOr("FILESHARE_LOG_FORMAT", cfg.Logging.Format), "text or json")
	)
	flag.Parse()

	cfg.Upload.Dir = *uploadDir
	cfg.Upload.MaxFileSize = *maxSize
	cfg.Session.TTL = *ttl
	if cfg.Session.TransferTimeout < *ttl {
		cfg.Session.TransferTimeout = *ttl
	}
	cfg.Security.TrustProxy = *trustProxy
	cfg.Audit.Enabled = *audit
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Logging.Level = *logLevel
	cfg.Logging.Format = *logFormat
	if *signingKey != "" {
		cfg.Token.PrivateKey = []byte(*signingKey)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.Logging)

	app, err := newApp(cfg, *addr, *redisAddr, logger)
	if err != nil {
		logger.WithError(err).Fatal("startup failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", *addr).Info("listening")
		errCh <- app.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown incomplete")
		os.Exit(1)
	}
}

func newLogger(cfg fileshare.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
