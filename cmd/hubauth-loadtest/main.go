package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wellbuilt/hubauth"
	"github.com/wellbuilt/hubauth/directory"
	"github.com/wellbuilt/hubauth/directory/directorytest"
	"github.com/wellbuilt/hubauth/internal/logger"
	"github.com/wellbuilt/hubauth/metrics/export/prometheus"
	"github.com/wellbuilt/hubauth/passcode"
)

const apiKey = "loadtest"

func main() {
	var (
		drivers     = flag.Int("drivers", 2000, "number of approved drivers to seed")
		companies   = flag.Int("companies", 50, "number of companies to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (login + entitlement)")
		latency     = flag.Duration("latency", 0, "artificial directory latency per request")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		dumpMetrics = flag.Bool("metrics", false, "print engine metrics after the run")
		dev         = flag.Bool("dev", false, "console logging at debug level")
		configPath  = flag.String("config", "", "engine config YAML; directory endpoints are replaced by the fake directory")
	)
	flag.Parse()

	if *drivers <= 0 || *companies <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "drivers, companies, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	cfg := hubauth.DefaultConfig()
	if *configPath != "" {
		loaded, err := hubauth.LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		cfg = loaded
	}

	log := logger.Setup(*dev || cfg.Logging.Dev)
	ctx := context.Background()

	client, cleanup, err := redisClient(*redisAddr, log)
	if err != nil {
		log.Fatal().Err(err).Msg("redis unavailable")
	}
	defer cleanup()

	srv := directorytest.New(apiKey)
	defer srv.Close()
	srv.Delay(*latency)

	fmt.Printf("seeding %d drivers across %d companies...\n", *drivers, *companies)
	seeds := seed(srv, *drivers, *companies)

	engine, err := hubauth.New().
		WithConfig(cfg).
		WithDirectory(srv.DatabaseURL(), srv.DocumentsURL(), apiKey).
		WithRedis(client).
		WithLogger(log.Level(zerolog.WarnLevel)).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}
	defer engine.Close()

	loginStats := runPhase(*ops, *concurrency, func(r *rand.Rand) bool {
		d := seeds[r.Intn(len(seeds))]
		res, err := engine.VerifyLogin(ctx, d.name, d.code)
		return err == nil && res.Valid
	})
	entitlementStats := runPhase(*ops, *concurrency, func(r *rand.Rand) bool {
		d := seeds[r.Intn(len(seeds))]
		return engine.CompanyConfig(ctx, d.company) != nil
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("entitlement", entitlementStats)

	if *dumpMetrics {
		fmt.Println("---- metrics ----")
		fmt.Print(prometheus.NewPrometheusExporter(engine).Render())
	}
}

func redisClient(addr string, log zerolog.Logger) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		log.Info().Str("addr", addr).Msg("using redis")
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	log.Info().Str("addr", mr.Addr()).Msg("using miniredis")
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

type seededDriver struct {
	name    string
	code    string
	company string
}

var tiers = []string{"field-basics", "full-field", "suite"}

func seed(srv *directorytest.Server, drivers, companies int) []seededDriver {
	for c := 0; c < companies; c++ {
		srv.PutCompany(companyID(c), map[string]any{
			"name": directorytest.String(fmt.Sprintf("Company %d", c)),
			"tier": directorytest.String(tiers[c%len(tiers)]),
		})
	}

	out := make([]seededDriver, drivers)
	for i := range out {
		d := seededDriver{
			name:    fmt.Sprintf("Driver %d", i),
			code:    fmt.Sprintf("pc%06d", i),
			company: companyID(i % companies),
		}
		srv.Put(directory.ApprovedPath+"/"+passcode.Hash(d.code), map[string]any{
			"displayName": d.name,
			"companyId":   d.company,
			"active":      true,
		})
		out[i] = d
	}
	return out
}

func companyID(i int) string {
	return fmt.Sprintf("company-%03d", i)
}

func runPhase(ops, concurrency int, op func(*rand.Rand) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				ok := op(r)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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
		return phaseStats{total: total}
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
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
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
