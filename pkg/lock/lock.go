package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when it still holds our token, so a
// lock that expired and was re-acquired elsewhere is never released by us.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// Locker hands out advisory locks backed by Redis.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// Lock is a held advisory lock. Release must be called by the acquirer.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// NewLocker constructs a Locker with the provided TTL.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire attempts to take the named lock. It returns (nil, false, nil) when
// the lock is already held elsewhere.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lock, bool, error) {
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	return &Lock{client: l.client, key: key, token: token}, true, nil
}

// Release frees the lock if it is still ours.
func (lk *Lock) Release(ctx context.Context) error {
	if lk == nil {
		return nil
	}
	if err := lk.client.Eval(ctx, releaseScript, []string{lk.key}, lk.token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", lk.key, err)
	}
	return nil
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
