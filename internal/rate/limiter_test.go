package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, "hrl"), mr
}

func TestAllowWithinBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < PolicyAuth.Limit; i++ {
		result, err := limiter.Allow(ctx, "ip:10.0.0.1", PolicyAuth)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		if result.Remaining != PolicyAuth.Limit-i-1 {
			t.Fatalf("attempt %d: expected remaining %d, got %d", i+1, PolicyAuth.Limit-i-1, result.Remaining)
		}
	}
}

func TestAllowDeniesOverBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < PolicyAuth.Limit; i++ {
		if _, err := limiter.Allow(ctx, "ip:10.0.0.1", PolicyAuth); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	result, err := limiter.Allow(ctx, "ip:10.0.0.1", PolicyAuth)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected over-budget attempt to be denied")
	}
	if result.RetryAfter <= 0 {
		t.Fatalf("expected positive RetryAfter, got %v", result.RetryAfter)
	}
	if result.Remaining != 0 {
		t.Fatalf("expected zero remaining, got %d", result.Remaining)
	}
}

func TestAllowWindowReset(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i <= PolicyAuth.Limit; i++ {
		if _, err := limiter.Allow(ctx, "ip:10.0.0.1", PolicyAuth); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	mr.FastForward(PolicyAuth.Window + time.Second)

	result, err := limiter.Allow(ctx, "ip:10.0.0.1", PolicyAuth)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !result.Allowed {
		t.Fatal("expected fresh window after expiry")
	}
	if result.Remaining != PolicyAuth.Limit-1 {
		t.Fatalf("expected remaining %d, got %d", PolicyAuth.Limit-1, result.Remaining)
	}
}

func TestAllowIsolatesSubjects(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i <= PolicyAuth.Limit; i++ {
		if _, err := limiter.Allow(ctx, "ip:10.0.0.1", PolicyAuth); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	result, err := limiter.Allow(ctx, "ip:10.0.0.2", PolicyAuth)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !result.Allowed {
		t.Fatal("expected other subject to have its own budget")
	}
}

func TestAllowIsolatesPolicies(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i <= PolicyAuth.Limit; i++ {
		if _, err := limiter.Allow(ctx, "ip:10.0.0.1", PolicyAuth); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	result, err := limiter.Allow(ctx, "ip:10.0.0.1", PolicyAPI)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !result.Allowed {
		t.Fatal("expected api policy budget to be independent of auth")
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	if _, err := limiter.Allow(ctx, "ip:10.0.0.1", PolicyAuth); err != nil {
		t.Fatalf("Allow failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		result, err := limiter.Peek(ctx, "ip:10.0.0.1", PolicyAuth)
		if err != nil {
			t.Fatalf("Peek failed: %v", err)
		}
		if !result.Allowed || result.Remaining != PolicyAuth.Limit-1 {
			t.Fatalf("expected Peek to report %d remaining, got %+v", PolicyAuth.Limit-1, result)
		}
	}
}

func TestPeekUnknownSubject(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	result, err := limiter.Peek(context.Background(), "ip:10.9.9.9", PolicyAuth)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if !result.Allowed || result.Remaining != PolicyAuth.Limit {
		t.Fatalf("expected full budget for unknown subject, got %+v", result)
	}
}

func TestResetClearsBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i <= PolicyAuth.Limit; i++ {
		if _, err := limiter.Allow(ctx, "ip:10.0.0.1", PolicyAuth); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	if err := limiter.Reset(ctx, "ip:10.0.0.1", PolicyAuth); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	result, err := limiter.Allow(ctx, "ip:10.0.0.1", PolicyAuth)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !result.Allowed {
		t.Fatal("expected fresh budget after reset")
	}
}
