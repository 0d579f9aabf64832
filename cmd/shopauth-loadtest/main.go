// Command shopauth-loadtest measures Engine validate and refresh throughput
// against real Redis-backed rate limits (or miniredis when no address is
// given).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	shopAuth "github.com/MrEthical07/shopAuth"
)

const loadPassword = "L0ad-test-passw0rd"

type accountState struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func main() {
	var (
		accounts    = flag.Int("accounts", 200, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (validate + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		strict      = flag.Bool("strict", true, "validate in strict mode")
		rotate      = flag.Bool("rotate", false, "rotate refresh tokens")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

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
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, notifier, err := buildEngine(client, *rotate, *ops)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]accountState, *accounts)
	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	for i := range states {
		if err := seed(ctx, engine, notifier, i, &states[i]); err != nil {
			fmt.Fprintf(os.Stderr, "seed %d failed: %v\n", i, err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	mode := shopAuth.ModeJWTOnly
	if *strict {
		mode = shopAuth.ModeStrict
	}

	validateStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		token := st.access
		st.mu.Unlock()
		_, err := engine.Validate(ctx, token, mode)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		defer st.mu.Unlock()
		res, err := engine.RefreshAccessToken(ctx, st.refresh)
		if err != nil {
			return err
		}
		st.access, st.refresh = res.AccessToken, res.RefreshToken
		return nil
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
}

func buildEngine(client redis.UniversalClient, rotate bool, ops int) (*shopAuth.Engine, *tokenSink, error) {
	cfg := shopAuth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("loadtest-loadtest-loadtest-key-32")
	cfg.Session.RotateRefreshTokens = rotate
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Async = true
	// The load phases exercise token paths, not throttling.
	cfg.RateLimit.Refresh.MaxAttempts = ops + 1
	cfg.RateLimit.Register.MaxAttempts = 1 << 20

	notifier := &tokenSink{}
	engine, err := shopAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithNotifier(notifier).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithLatencyHistograms(true).
		Build()
	return engine, notifier, err
}

func seed(ctx context.Context, engine *shopAuth.Engine, notifier *tokenSink, i int, st *accountState) error {
	email := fmt.Sprintf("load%06d@example.com", i)
	if _, err := engine.Register(ctx, shopAuth.RegisterRequest{
		Email:    email,
		Username: fmt.Sprintf("load%06d", i),
		Password: loadPassword,
	}); err != nil {
		return err
	}
	if err := engine.VerifyEmail(ctx, notifier.take()); err != nil {
		return err
	}
	login, err := engine.Login(ctx, email, loadPassword)
	if err != nil {
		return err
	}
	st.access, st.refresh = login.AccessToken, login.RefreshToken
	return nil
}

// tokenSink keeps the last verification token; seeding is sequential.
type tokenSink struct {
	mu    sync.Mutex
	token string
}

func (s *tokenSink) SendVerification(_ context.Context, _, token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *tokenSink) SendPasswordReset(context.Context, string, string) error { return nil }

func (s *tokenSink) take() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func runPhase(ops, concurrency int, seedMul int64, op func(*rand.Rand) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seedMul))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
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
	if len(samples) == 0 {
		return 0
	}
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
