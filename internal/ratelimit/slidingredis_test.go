package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSlidingWindowAllow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	limiter := SlidingWindow{Client: client, Prefix: "test:"}

	ctx := context.Background()
	window := 2 * time.Second
	limit := 2

	for i := 0; i < limit; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, limit)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if remaining != limit-(i+1) {
			t.Fatalf("unexpected remaining: %d", remaining)
		}
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, limit)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("expected third request to be rejected")
	}
	if remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", remaining)
	}

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "key", window, limit)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed {
		t.Fatal("expected request after window to be allowed")
	}
}

func TestStoreLimiterAllowFixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter("test")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, reset, err := limiter.Allow(ctx, "visitor", time.Minute, 3)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed || remaining != 2-i {
			t.Fatalf("request %d: allowed=%v remaining=%d", i, allowed, remaining)
		}
		if !reset.After(time.Now()) {
			t.Fatalf("expected reset in the future, got %v", reset)
		}
	}
	allowed, _, _, err := limiter.Allow(ctx, "visitor", time.Minute, 3)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("expected fourth request to be rejected")
	}
}

func TestRedisStoreLimiterSharesCounts(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	first, err := NewRedisStoreLimiter(client, "fixed")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	second, err := NewRedisStoreLimiter(client, "fixed")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	ctx := context.Background()
	if allowed, _, _, err := first.Allow(ctx, "visitor", time.Minute, 1); err != nil || !allowed {
		t.Fatalf("first request: allowed=%v err=%v", allowed, err)
	}
	if allowed, _, _, err := second.Allow(ctx, "visitor", time.Minute, 1); err != nil || allowed {
		t.Fatalf("second replica should see the shared count: allowed=%v err=%v", allowed, err)
	}
}
