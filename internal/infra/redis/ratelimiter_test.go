package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestNewRedisRateLimiterRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisRateLimiter(nil, 5); err == nil {
		t.Fatal("expected error for nil client")
	}

	rdb := newTestRedisClient(t)
	if _, err := NewRedisRateLimiter(rdb, 0); err == nil {
		t.Fatal("expected error for non-positive limit")
	}
}

func TestRedisRateLimiterAllowWithinWindow(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_000, 0)
	limiter, err := newRedisRateLimiter(rdb, 2, func() time.Time { return now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	want := []bool{true, true, false}
	for i, expected := range want {
		allowed, err := limiter.Allow(context.Background(), "items")
		if err != nil {
			t.Fatalf("Allow() call %d error = %v", i, err)
		}
		if allowed != expected {
			t.Fatalf("Allow() call %d = %v, want %v", i, allowed, expected)
		}
	}

	now = now.Add(time.Second)
	allowed, err := limiter.Allow(context.Background(), "items")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("new second window should allow call")
	}
}

func TestRedisRateLimiterScopesAreIndependent(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_100, 0)
	limiter, err := newRedisRateLimiter(rdb, 1, func() time.Time { return now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	for _, scope := range []string{"items", "reports"} {
		allowed, err := limiter.Allow(context.Background(), scope)
		if err != nil {
			t.Fatalf("Allow(%s) error = %v", scope, err)
		}
		if !allowed {
			t.Fatalf("Allow(%s) should be allowed on first request", scope)
		}
	}

	allowed, err := limiter.Allow(context.Background(), " ITEMS ")
	if err != nil {
		t.Fatalf("Allow(ITEMS) error = %v", err)
	}
	if allowed {
		t.Fatal("scope should be normalized and share the items window")
	}
}

func TestRedisRateLimiterAllowRequiresScope(t *testing.T) {
	t.Parallel()

	limiter, err := NewRedisRateLimiter(newTestRedisClient(t), 1)
	if err != nil {
		t.Fatalf("NewRedisRateLimiter() error = %v", err)
	}

	if _, err := limiter.Allow(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank scope")
	}
}

func TestRedisRateLimiterWaitBacksOffUntilNextWindow(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	var mu sync.Mutex
	now := time.Unix(1_700_000_200, 0)
	var sleeps []time.Duration
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		},
		func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			defer mu.Unlock()
			sleeps = append(sleeps, d)
			if len(sleeps) == 3 {
				now = now.Add(time.Second)
			}
			return nil
		},
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if err := limiter.Wait(context.Background(), "items"); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}
	if err := limiter.Wait(context.Background(), "items"); err != nil {
		t.Fatalf("second Wait() error = %v", err)
	}

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	if len(sleeps) != len(want) {
		t.Fatalf("sleep count = %d, want %d", len(sleeps), len(want))
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleep[%d] = %s, want %s", i, sleeps[i], want[i])
		}
	}
}

func TestRedisRateLimiterWaitContextDeadline(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_300, 0)
	limiter, err := newRedisRateLimiter(rdb, 1, func() time.Time { return now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if err := limiter.Wait(context.Background(), "items"); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err = limiter.Wait(ctx, "items")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	client, _ := newTestRedis(t)
	return client
}

func newTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb, mr
}
