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

	"github.com/vrental/gatewayauth"
	"github.com/vrental/gatewayauth/cache"
	"github.com/vrental/gatewayauth/jwt"
	"github.com/vrental/gatewayauth/store"
)

const loadtestSecret = "loadtest-secret-0123456789abcdef0123"

func main() {
	var (
		users       = flag.Int("users", 10000, "number of active users to seed")
		tokens      = flag.Int("tokens", 50000, "number of distinct tokens to issue")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "authenticate calls to run")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		memory      = flag.Bool("memory", false, "use the in-process cache instead of redis")
		replay      = flag.Bool("replay", false, "enable jti replay detection")
	)
	flag.Parse()

	if *users <= 0 || *tokens <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, tokens, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	authCache, cleanup, err := openCache(*redisAddr, *memory)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	seed := make(map[int64]string, *users)
	for i := 1; i <= *users; i++ {
		seed[int64(i)] = "Active"
	}

	cfg := gatewayauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(loadtestSecret)
	cfg.RateLimit.Enabled = false
	cfg.Replay.Enabled = *replay
	cfg.Metrics.EnableLatencyHistograms = true

	auth, err := gatewayauth.New().
		WithConfig(cfg).
		WithCache(authCache).
		WithUserStore(store.NewMemory(seed)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build authenticator: %v\n", err)
		os.Exit(1)
	}
	defer auth.Close()

	mgr, err := gatewayauth.NewJWTManager(cfg.JWT, time.Now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jwt manager: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("issuing %d tokens...\n", *tokens)
	startIssue := time.Now()
	headers := make([]string, *tokens)
	for i := range headers {
		tok, err := mgr.CreateAccess(jwt.AccessClaims{
			UserID: int64(i%*users) + 1,
			Role:   "customer",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		headers[i] = "Bearer " + tok
	}
	fmt.Printf("issued in %s\n", time.Since(startIssue).Round(time.Millisecond))

	rep := runAuthenticatePhase(ctx, auth, headers, *ops, *concurrency)

	fmt.Println("---- results ----")
	rep.print("authenticate")
	snap := auth.MetricsSnapshot()
	for _, id := range []gatewayauth.MetricID{
		gatewayauth.MetricAuthSuccess,
		gatewayauth.MetricAuthFailure,
		gatewayauth.MetricUserStatusCacheHit,
		gatewayauth.MetricUserStatusStoreLookup,
		gatewayauth.MetricCacheDegraded,
	} {
		fmt.Printf("  %-26s %d\n", id, snap.Counters[id])
	}
}

func openCache(addr string, memory bool) (gatewayauth.Cache, func(), error) {
	if memory {
		fmt.Println("using in-process cache")
		return cache.NewMemory(cache.MemoryConfig{}), func() {}, nil
	}
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
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
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
	return cache.NewRedisFromClient(client, time.Second), cleanup, nil
}

// runAuthenticatePhase splits ops across workers. Each worker keeps its own
// samples and client IP.
func runAuthenticatePhase(ctx context.Context, auth *gatewayauth.Authenticator, headers []string, ops, concurrency int) report {
	var (
		wg      sync.WaitGroup
		next    atomic.Int64
		failed  atomic.Int64
		samples = make([][]time.Duration, concurrency)
	)

	start := time.Now()
	for w := range samples {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			req := gatewayauth.Request{ClientIP: fmt.Sprintf("10.%d.%d.%d", worker>>16&0xff, worker>>8&0xff, worker&0xff)}
			local := make([]time.Duration, 0, ops/concurrency+1)
			for next.Add(1) <= int64(ops) {
				req.Authorization = headers[r.Intn(len(headers))]
				t0 := time.Now()
				if res := auth.Authenticate(ctx, req); !res.Success {
					failed.Add(1)
				}
				local = append(local, time.Since(t0))
			}
			samples[worker] = local
		}(w)
	}
	wg.Wait()

	return summarize(time.Since(start), samples, failed.Load())
}

type report struct {
	elapsed  time.Duration
	ops      int
	failures int64
	mean     time.Duration
	quantile map[int]time.Duration
}

var reportedQuantiles = []int{50, 95, 99}

func summarize(elapsed time.Duration, perWorker [][]time.Duration, failures int64) report {
	var all []time.Duration
	for _, s := range perWorker {
		all = append(all, s...)
	}
	rep := report{elapsed: elapsed, ops: len(all), failures: failures, quantile: map[int]time.Duration{}}
	if len(all) == 0 {
		return rep
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	var sum time.Duration
	for _, d := range all {
		sum += d
	}
	rep.mean = sum / time.Duration(len(all))
	for _, q := range reportedQuantiles {
		rep.quantile[q] = all[(len(all)-1)*q/100]
	}
	return rep
}

func (r report) print(name string) {
	rate := 0.0
	if r.elapsed > 0 {
		rate = float64(r.ops) / r.elapsed.Seconds()
	}
	fmt.Printf("%s: ops=%d failures=%d elapsed=%s ops/sec=%.0f mean=%s",
		name, r.ops, r.failures, r.elapsed.Round(time.Millisecond), rate, r.mean.Round(time.Microsecond))
	for _, q := range reportedQuantiles {
		fmt.Printf(" p%d=%s", q, r.quantile[q].Round(time.Microsecond))
	}
	fmt.Println()
}
