// Command authcore-loadtest measures session verification and login throughput of an
// Engine backed by an in-memory identity store and Redis (REDIS_ADDR or miniredis).
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
	"github.com/mentorloop/authcore"
	"github.com/mentorloop/authcore/password"
	"github.com/mentorloop/authcore/permission"
	"github.com/mentorloop/authcore/store"
	"github.com/mentorloop/authcore/store/memstore"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const loadPassword = "load-test-password"

type identity struct {
	email string
	token string
}

func main() {
	var (
		users       = flag.Int("users", 1000, "number of identities to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		verifyOps   = flag.Int("verify-ops", 200000, "session verifications to run")
		loginOps    = flag.Int("login-ops", 2000, "logins to run")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *verifyOps <= 0 || *loginOps <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, verify-ops and login-ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	client, cleanup, err := openRedis(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hasher: %v\n", err)
		os.Exit(1)
	}
	hash, err := hasher.Hash(loadPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash: %v\n", err)
		os.Exit(1)
	}

	identities := memstore.New()
	states := make([]identity, *users)
	for i := range states {
		email := fmt.Sprintf("load-%d@example.com", i)
		if _, err := identities.Create(ctx, store.NewIdentity{
			Email:        email,
			Name:         email,
			PasswordHash: hash,
			Role:         permission.Student,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "seed: %v\n", err)
			os.Exit(1)
		}
		states[i].email = email
	}

	cfg := authcore.DefaultConfig()
	cfg.Token.PrivateKey = []byte("authcore-loadtest-signing-key-0123456789")
	cfg.Password.Cost = bcrypt.MinCost
	cfg.RateLimit.Enabled = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := authcore.New().WithConfig(cfg).WithIdentityStore(identities).WithRedis(client).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("logging in %d identities...\n", *users)
	startSeed := time.Now()
	for i := range states {
		res, err := engine.Login(ctx, states[i].email, loadPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		states[i].token = res.SessionToken
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	verifyStats := runPhase(*verifyOps, *concurrency, 7919, func(r *rand.Rand) error {
		_, err := engine.VerifySession(ctx, states[r.Intn(len(states))].token)
		return err
	})
	loginStats := runPhase(*loginOps, *concurrency, 6151, func(r *rand.Rand) error {
		_, err := engine.Login(ctx, states[r.Intn(len(states))].email, loadPassword)
		return err
	})

	fmt.Println("---- results ----")
	printStats("verify", verifyStats)
	printStats("login", loginStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine counters: login_success=%d session_rejected=%d verify_latency=%v\n",
		snap.Counters[authcore.MetricLoginSuccess],
		snap.Counters[authcore.MetricSessionRejected],
		snap.Histograms[authcore.MetricVerifyLatency],
	)
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
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
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
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
