package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	fileshare "github.com/SuperSection/fileshare"
	"github.com/SuperSection/fileshare/httpapi"
	"github.com/SuperSection/fileshare/metrics/export/prometheus"
)

type app struct {
	engine *fileshare.Engine
	server *http.Server
	redis  redis.UniversalClient
	mini   *miniredis.Miniredis
	logger logrus.FieldLogger
}

func newApp(cfg fileshare.Config, addr, redisAddr string, logger *logrus.Logger) (*app, error) {
	a := &app{logger: logger}

	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		a.mini = mr
		redisAddr = mr.Addr()
		logger.WithField("addr", redisAddr).Warn("REDIS_ADDR not set; receipts and throttles live in memory")
	}
	a.redis = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{redisAddr}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.redis.Ping(ctx).Err(); err != nil {
		a.closeRedis()
		return nil, fmt.Errorf("ping redis at %s: %w", redisAddr, err)
	}

	b := fileshare.New().WithConfig(cfg).WithRedis(a.redis).WithLogger(logger)
	if cfg.Audit.Enabled {
		b = b.WithAuditSink(fileshare.NewLogrusSink(logger.WithField("component", "audit")))
	}
	engine, err := b.Build()
	if err != nil {
		a.closeRedis()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine

	report := engine.SecurityReport()
	entry := logger.WithFields(logrus.Fields{
		"signing_algorithm": report.SigningAlgorithm,
		"ephemeral_key":     report.EphemeralSigningKey,
		"code_space":        report.CodeSpace,
		"fetch_throttle":    report.FetchThrottleActive,
		"upload_throttle":   report.UploadThrottleActive,
		"trust_proxy":       report.TrustProxy,
		"max_file_size":     report.MaxFileSize,
	})
	if report.EphemeralSigningKey || !report.FetchThrottleActive {
		entry.Warn("security posture is weakened")
	} else {
		entry.Info("security posture")
	}

	handler := httpapi.New(engine, httpapi.Options{
		Logger:  logger,
		Metrics: prometheus.NewPrometheusExporter(engine).Handler(),
	}).Handler()

	a.server = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return a, nil
}

// Shutdown stops accepting requests, waits for in-flight transfers until ctx ends,
// then closes the engine and Redis.
func (a *app) Shutdown(ctx context.Context) error {
	a.logger.Info("starting graceful shutdown")

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		_ = a.server.Close()
	}

	a.engine.Close()
	a.closeRedis()

	a.logger.Info("graceful shutdown complete")
	return errors.Join(errs...)
}

func (a *app) closeRedis() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("redis close")
		}
	}
	if a.mini != nil {
		a.mini.Close()
	}
}
