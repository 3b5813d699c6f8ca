package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy describes one named fixed-window budget.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Named policies shared by the engine and the HTTP middleware. Auth covers
// credential exchanges, API covers general reads, Heavy covers expensive
// endpoints (exports, bulk operations), Admin covers privileged writes.
var (
	PolicyAuth  = Policy{Name: "auth", Limit: 5, Window: time.Minute}
	PolicyAPI   = Policy{Name: "api", Limit: 100, Window: time.Minute}
	PolicyHeavy = Policy{Name: "heavy", Limit: 10, Window: time.Minute}
	PolicyAdmin = Policy{Name: "admin", Limit: 50, Window: time.Minute}
)

// Result is the outcome of a single limiter check.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter enforces named fixed-window budgets over shared Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Limiter] backed by the given Redis client. prefix namespaces
// all counter keys.
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (l *Limiter) key(policy Policy, subject string) string {
	return l.prefix + ":" + policy.Name + ":" + subject
}

// Allow consumes one attempt from the subject's budget under the given policy
// and reports the post-consumption window state. The first hit opens the
// window; the counter expires with the window, which reclaims stale subjects
// without any sweeping.
func (l *Limiter) Allow(ctx context.Context, subject string, policy Policy) (Result, error) {
	key := l.key(policy, subject)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, policy.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		ttl = policy.Window
	}

	now := time.Now()
	result := Result{
		ResetAt: now.Add(ttl),
	}

	if count > int64(policy.Limit) {
		result.Allowed = false
		result.Remaining = 0
		result.RetryAfter = ttl
		return result, nil
	}

	result.Allowed = true
	result.Remaining = policy.Limit - int(count)
	return result, nil
}

// Peek reports the subject's window state without consuming an attempt.
// Missing counters report a full budget and do not reveal subject existence.
func (l *Limiter) Peek(ctx context.Context, subject string, policy Policy) (Result, error) {
	key := l.key(policy, subject)

	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return Result{Allowed: true, Remaining: policy.Limit, ResetAt: time.Now().Add(policy.Window)}, nil
		}
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		ttl = 0
	}

	result := Result{ResetAt: time.Now().Add(ttl)}
	if count >= int64(policy.Limit) {
		result.RetryAfter = ttl
		return result, nil
	}

	result.Allowed = true
	result.Remaining = policy.Limit - int(count)
	return result, nil
}

// Reset clears the subject's counter under the given policy. Called after a
// successful credential exchange so earlier failures stop counting.
func (l *Limiter) Reset(ctx context.Context, subject string, policy Policy) error {
	if err := l.redis.Del(ctx, l.key(policy, subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}
