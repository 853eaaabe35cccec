//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"testing"
	"time"

	fileshare "github.com/SuperSection/fileshare"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

var sharedKey = []byte("integration-signing-key-0123456789")

// redisMode describes which Redis backend the compatibility suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the set of Redis backends to test.
// miniredis is always available.
// Real Redis standalone is used when REDIS_ADDR is set (e.g. "127.0.0.1:6379").
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	return modes
}

func newEngine(t *testing.T, rdb redis.UniversalClient, mutate func(*fileshare.Config)) *fileshare.Engine {
	t.Helper()

	cfg := fileshare.DefaultConfig()
	cfg.Upload.Dir = t.TempDir()
	cfg.Token.PrivateKey = sharedKey
	if mutate != nil {
		mutate(&cfg)
	}

	logger, _ := logtest.NewNullLogger()
	engine, err := fileshare.New().WithConfig(cfg).WithRedis(rdb).WithLogger(logger).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
