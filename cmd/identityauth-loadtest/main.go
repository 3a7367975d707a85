// Command identityauth-loadtest drives the Redis refresh state store: random
// reads, serialized per-user rotations, and rounds where every worker races
// the same presented value. Any contention round without exactly one winner
// fails the run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/identityauth/identity"
	"github.com/MrEthical07/identityauth/internal"
	"github.com/MrEthical07/identityauth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type options struct {
	users, workers, ops, rounds int
	redisAddr, prefix           string
}

// account is one seeded user and its live refresh value.
type account struct {
	mu   sync.Mutex
	id   string
	live string
}

func main() {
	var o options
	flag.IntVar(&o.users, "users", 10000, "users to seed")
	flag.IntVar(&o.workers, "concurrency", 128, "concurrent workers")
	flag.IntVar(&o.ops, "ops", 100000, "operations per phase")
	flag.IntVar(&o.rounds, "contention-rounds", 200, "rounds of all workers racing one refresh value")
	flag.StringVar(&o.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address; empty starts an in-process miniredis")
	flag.StringVar(&o.prefix, "prefix", "iar-loadtest", "refresh key prefix")
	flag.Parse()

	if err := run(context.Background(), o); err != nil {
		fmt.Fprintln(os.Stderr, "loadtest:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	if o.users <= 0 || o.workers <= 0 || o.ops <= 0 || o.rounds < 0 {
		return errors.New("users, concurrency and ops must be positive")
	}

	addr := o.redisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Println("target: in-process miniredis", addr)
	} else {
		fmt.Println("target: redis", addr)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping %s: %w", addr, err)
	}

	store := session.NewStore(client, o.prefix, time.Hour)
	accounts, err := seed(ctx, store, o.users)
	if err != nil {
		return err
	}

	reads := measure(o.ops, o.workers, func(r *rand.Rand) error {
		_, err := store.Get(ctx, accounts[r.IntN(len(accounts))].id)
		return err
	})
	rotations := measure(o.ops, o.workers, func(r *rand.Rand) error {
		return rotate(ctx, store, &accounts[r.IntN(len(accounts))])
	})
	violations, err := contend(ctx, store, o.workers, o.rounds)
	if err != nil {
		return err
	}

	fmt.Println(reads.line("get"))
	fmt.Println(rotations.line("rotate"))
	fmt.Printf("%-8s rounds=%d violations=%d\n", "contend", o.rounds, violations)
	if violations > 0 {
		return fmt.Errorf("%d contention rounds without a single winner", violations)
	}
	return nil
}

func seed(ctx context.Context, store *session.Store, n int) ([]account, error) {
	start := time.Now()
	accounts := make([]account, n)
	for i := range accounts {
		v, err := internal.NewRefreshValue()
		if err != nil {
			return nil, err
		}
		accounts[i].id, accounts[i].live = fmt.Sprintf("user-%d", i), v
		if err := store.UpdateRefreshState(ctx, accounts[i].id, liveRecord(v)); err != nil {
			return nil, fmt.Errorf("seed %s: %w", accounts[i].id, err)
		}
	}
	fmt.Printf("seeded %d users in %s\n", n, time.Since(start).Round(time.Millisecond))
	return accounts, nil
}

func rotate(ctx context.Context, store *session.Store, a *account) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, err := internal.NewRefreshValue()
	if err != nil {
		return err
	}
	if err := store.SwapRefreshState(ctx, a.id, a.live, liveRecord(next), time.Now()); err != nil {
		return err
	}
	a.live = next
	return nil
}

func liveRecord(v string) identity.RefreshRecord {
	return identity.RefreshRecord{Value: v, ExpiresAt: time.Now().Add(24 * time.Hour)}
}

// contend races every worker on one presented value per round and returns
// how many rounds did not have exactly one successful swap.
func contend(ctx context.Context, store *session.Store, workers, rounds int) (int, error) {
	const id = "contended-user"
	violations := 0
	for round := range rounds {
		presented := fmt.Sprintf("round-%d", round)
		if err := store.UpdateRefreshState(ctx, id, liveRecord(presented)); err != nil {
			return 0, fmt.Errorf("contention seed: %w", err)
		}

		var wins atomic.Int32
		gate := make(chan struct{})
		var g errgroup.Group
		for w := range workers {
			g.Go(func() error {
				<-gate
				next := liveRecord(fmt.Sprintf("round-%d-worker-%d", round, w))
				if store.SwapRefreshState(ctx, id, presented, next, time.Now()) == nil {
					wins.Add(1)
				}
				return nil
			})
		}
		close(gate)
		_ = g.Wait()
		if wins.Load() != 1 {
			violations++
		}
	}
	return violations, nil
}

type summary struct {
	elapsed  time.Duration
	samples  []time.Duration
	failures int64
}

// measure runs ops calls of op across workers. Each worker keeps its own
// samples so the hot loop takes no lock.
func measure(ops, workers int, op func(*rand.Rand) error) summary {
	var issued, failures atomic.Int64
	var g errgroup.Group
	perWorker := make([][]time.Duration, workers)
	start := time.Now()
	for w := range workers {
		g.Go(func() error {
			r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(w)))
			for issued.Add(1) <= int64(ops) {
				t0 := time.Now()
				if op(r) != nil {
					failures.Add(1)
				}
				perWorker[w] = append(perWorker[w], time.Since(t0))
			}
			return nil
		})
	}
	_ = g.Wait()

	s := summary{elapsed: time.Since(start), samples: slices.Concat(perWorker...), failures: failures.Load()}
	slices.Sort(s.samples)
	return s
}

func (s summary) quantile(q float64) time.Duration {
	if len(s.samples) == 0 {
		return 0
	}
	return s.samples[int(q*float64(len(s.samples)-1))]
}

func (s summary) line(name string) string {
	rate := 0.0
	if s.elapsed > 0 {
		rate = float64(len(s.samples)) / s.elapsed.Seconds()
	}
	return fmt.Sprintf("%-8s ops=%d failed=%d in %s (%.0f/s) p50=%s p95=%s p99=%s max=%s",
		name, len(s.samples), s.failures, s.elapsed.Round(time.Millisecond), rate,
		s.quantile(0.50).Round(time.Microsecond),
		s.quantile(0.95).Round(time.Microsecond),
		s.quantile(0.99).Round(time.Microsecond),
		s.quantile(1).Round(time.Microsecond),
	)
}
