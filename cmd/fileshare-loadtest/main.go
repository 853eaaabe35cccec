package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	fileshare "github.com/SuperSection/fileshare"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 2000, "number of sessions to create")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		size        = flag.Int("size", 64<<10, "payload size in bytes")
		racers      = flag.Int("racers", 32, "concurrent fetchers per code in the race phase")
		races       = flag.Int("races", 200, "codes contested in the race phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *size < 0 || *racers <= 0 || *races <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, racers, and races must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := fileshare.DefaultConfig()
	cfg.Security.EnableFetchThrottle = false
	cfg.Security.EnableUploadThrottle = false
	cfg.Metrics.Enabled = true

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	engine, err := fileshare.New().WithConfig(cfg).WithRedis(client).WithLogger(logger).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	payload := bytes.Repeat([]byte{'x'}, *size)
	ctx := context.Background()

	codes, createStats := runCreatePhase(ctx, engine, payload, *sessions, *concurrency)
	fetchStats := runFetchPhase(ctx, engine, codes, *concurrency)
	winners, raceStats := runRacePhase(ctx, engine, payload, *races, *racers)

	fmt.Println("---- results ----")
	printStats("create", createStats)
	printStats("fetch", fetchStats)
	printStats("race", raceStats)
	fmt.Printf("race: codes=%d winners=%d\n", *races, winners)
	fmt.Printf("live sessions after run: %d\n", engine.LiveSessions())

	if winners != int64(*races) {
		fmt.Fprintln(os.Stderr, "single-delivery violated: winners != contested codes")
		os.Exit(1)
	}
}

func runCreatePhase(ctx context.Context, engine *fileshare.Engine, payload []byte, n, concurrency int) ([]fileshare.InviteCode, phaseStats) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, n)
		codes     = make([]fileshare.InviteCode, 0, n)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= n {
					return
				}
				t0 := time.Now()
				ticket, err := engine.CreateSession(ctx, fileshare.Upload{
					Filename: fmt.Sprintf("load-%d.bin", i),
					Size:     int64(len(payload)),
					Body:     bytes.NewReader(payload),
				})
				d := time.Since(t0)

				mu.Lock()
				latencies = append(latencies, d)
				if err == nil {
					codes = append(codes, ticket.Code)
				}
				mu.Unlock()
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}
	wg.Wait()
	return codes, computeStats(time.Since(start), latencies, failures)
}

func runFetchPhase(ctx context.Context, engine *fileshare.Engine, codes []fileshare.InviteCode, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, len(codes))
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(codes) {
					return
				}
				t0 := time.Now()
				err := fetchAll(ctx, engine, codes[i])
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

// runRacePhase creates one session per round and lets racers fetch it at once. Only
// one fetch per code may succeed.
func runRacePhase(ctx context.Context, engine *fileshare.Engine, payload []byte, rounds, racers int) (int64, phaseStats) {
	var (
		winners   int64
		failures  int64
		latencies = make([]time.Duration, 0, rounds*racers)
		mu        sync.Mutex
	)

	start := time.Now()
	for r := 0; r < rounds; r++ {
		ticket, err := engine.CreateSession(ctx, fileshare.Upload{
			Filename: fmt.Sprintf("race-%d.bin", r),
			Size:     int64(len(payload)),
			Body:     bytes.NewReader(payload),
		})
		if err != nil {
			atomic.AddInt64(&failures, 1)
			continue
		}

		var wg sync.WaitGroup
		gate := make(chan struct{})
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				t0 := time.Now()
				err := fetchAll(ctx, engine, ticket.Code)
				d := time.Since(t0)
				switch {
				case err == nil:
					atomic.AddInt64(&winners, 1)
				case !errors.Is(err, fileshare.ErrNotFound):
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		close(gate)
		wg.Wait()
	}
	return winners, computeStats(time.Since(start), latencies, failures)
}

func fetchAll(ctx context.Context, engine *fileshare.Engine, code fileshare.InviteCode) error {
	d, err := engine.FetchSession(ctx, code)
	if err != nil {
		return err
	}
	_, streamErr := d.Stream(ctx, io.Discard)
	return errors.Join(streamErr, d.Close())
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
