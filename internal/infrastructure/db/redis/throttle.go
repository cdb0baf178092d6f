package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle locks an account out after maxFailures failed logins inside
// window. The window starts at the first failure.
// Key format: login:failures:<lowercased email>
type LoginThrottle struct {
	client      redis.Cmdable
	maxFailures int64
	window      time.Duration
}

func NewLoginThrottle(client redis.Cmdable, maxFailures int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{client: client, maxFailures: int64(maxFailures), window: window}
}

func (t *LoginThrottle) Allowed(ctx context.Context, key string) (bool, error) {
	if t.maxFailures <= 0 {
		return true, nil
	}
	n, err := t.client.Get(ctx, t.key(key)).Int64()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("throttle check: %w", err)
	}
	return n < t.maxFailures, nil
}

func (t *LoginThrottle) RecordFailure(ctx context.Context, key string) error {
	k := t.key(key)
	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("throttle record: %w", err)
	}
	return nil
}

func (t *LoginThrottle) Reset(ctx context.Context, key string) error {
	return t.client.Del(ctx, t.key(key)).Err()
}

func (t *LoginThrottle) key(account string) string {
	return "login:failures:" + strings.ToLower(strings.TrimSpace(account))
}
