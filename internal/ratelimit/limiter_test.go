package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewLimiter(client, "test:login", limit, window), mr
}

func TestAllowUpToLimit(t *testing.T) {
	limiter, _ := testLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "alice")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}

	ok, err := limiter.Allow(ctx, "alice")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if ok {
		t.Fatal("fourth attempt should be denied")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	limiter, _ := testLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "alice"); !ok {
		t.Fatal("first attempt for alice should pass")
	}
	if ok, _ := limiter.Allow(ctx, "alice"); ok {
		t.Fatal("second attempt for alice should be denied")
	}
	if ok, _ := limiter.Allow(ctx, "bob"); !ok {
		t.Fatal("bob must not be affected by alice's counter")
	}
}

func TestWindowExpiryResetsBudget(t *testing.T) {
	limiter, mr := testLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "alice"); !ok {
		t.Fatal("first attempt should pass")
	}
	if ok, _ := limiter.Allow(ctx, "alice"); ok {
		t.Fatal("second attempt should be denied")
	}

	mr.FastForward(2 * time.Minute)

	if ok, _ := limiter.Allow(ctx, "alice"); !ok {
		t.Fatal("attempt after window expiry should pass")
	}
}

func TestResetClearsCounter(t *testing.T) {
	limiter, _ := testLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "alice"); !ok {
		t.Fatal("first attempt should pass")
	}
	if err := limiter.Reset(ctx, "alice"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if ok, _ := limiter.Allow(ctx, "alice"); !ok {
		t.Fatal("attempt after reset should pass")
	}
}

func TestFailsOpenWhenRedisDown(t *testing.T) {
	limiter, mr := testLimiter(t, 1, time.Minute)
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "alice")
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if !ok {
		t.Fatal("limiter must fail open when redis is unreachable")
	}
}
