package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL   = 5 * time.Second
	lockRetryBackoff = 25 * time.Millisecond
)

// ErrLockTimeout is returned when the lock could not be taken before the
// context was done.
var ErrLockTimeout = errors.New("identity lock: timed out")

// releaseScript deletes the key only if it still holds our owner value.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IdentityLocker is a per-identity mutex shared by every API instance.
// Key format: lock:identity:<id>
type IdentityLocker struct {
	client lockClient
	ttl    time.Duration
}

// lockClient is the subset of go-redis used by IdentityLocker.
type lockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

func NewIdentityLocker(client lockClient, ttl time.Duration) *IdentityLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &IdentityLocker{client: client, ttl: ttl}
}

// Lock spins until the key is acquired or ctx is done. The lock expires on
// its own after ttl if the holder never releases it.
func (l *IdentityLocker) Lock(ctx context.Context, identityID int64) (func(), error) {
	key := fmt.Sprintf("lock:identity:%d", identityID)
	owner, err := ownerToken()
	if err != nil {
		return func() {}, err
	}

	for {
		ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
		if err != nil {
			return func() {}, fmt.Errorf("identity lock: %w", err)
		}
		if ok {
			return func() {
				// Release outside the request context so a cancelled request
				// still frees the key.
				rctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
				defer cancel()
				_ = releaseScript.Run(rctx, l.client, []string{key}, owner).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return func() {}, ErrLockTimeout
		case <-time.After(lockRetryBackoff):
		}
	}
}

func ownerToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("identity lock owner: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
