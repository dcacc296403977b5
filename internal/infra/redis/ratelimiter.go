package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 50
	rateLimitKeyPrefix       = "kandidatvarsel:ratelimit"
	backoffStep              = 20 * time.Millisecond
	backoffMax               = 200 * time.Millisecond
	windowSeconds            = 1
)

// The first INCR in a window sets its expiry; later ones only count.
var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*WindowRateLimiter)(nil)

// WindowRateLimiter counts calls per scope in fixed one-second windows shared
// by every replica through Redis.
type WindowRateLimiter struct {
	client      goredis.Scripter
	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewWindowRateLimiter(client goredis.Scripter, limitPerSec int) (*WindowRateLimiter, error) {
	return newWindowRateLimiter(client, int64(limitPerSec), time.Now, sleepWithContext)
}

func newWindowRateLimiter(
	client goredis.Scripter,
	limitPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*WindowRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &WindowRateLimiter{
		client:      client,
		limitPerSec: limitPerSec,
		now:         nowFn,
		sleep:       sleepFn,
	}, nil
}

func (r *WindowRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	scope = strings.ToLower(strings.TrimSpace(scope))
	if scope == "" {
		return false, fmt.Errorf("rate limit scope is required")
	}

	key := windowKey(scope, r.now())
	result, err := allowScript.Run(ctx, r.client, []string{key}, r.limitPerSec, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit for %s: %w", scope, err)
	}

	return result == 1, nil
}

func (r *WindowRateLimiter) Wait(ctx context.Context, scope string) error {
	backoff := backoffStep
	for {
		allowed, err := r.Allow(ctx, scope)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff = min(backoff+backoffStep, backoffMax)
	}
}

func windowKey(scope string, now time.Time) string {
	return fmt.Sprintf("%s:%s:%d", rateLimitKeyPrefix, scope, now.UTC().Unix())
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
