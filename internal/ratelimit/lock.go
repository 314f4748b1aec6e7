package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds the caller's token, so an
// expired lease never releases the next holder's lock.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var ErrLockNotConfigured = errors.New("lock client not configured")

type Locker struct {
	client  *redis.Client
	release *redis.Script
}

// Lease is a held lock. The zero Lease releases nothing.
type Lease struct {
	Key   string
	Token string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(releaseScript),
	}
}

// Acquire returns ok=false when another holder has the key.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	switch {
	case l == nil || l.client == nil:
		return Lease{}, false, ErrLockNotConfigured
	case key == "":
		return Lease{}, false, errors.New("lock key is empty")
	case ttl <= 0:
		return Lease{}, false, errors.New("lock ttl must be positive")
	}

	lease := Lease{Key: key, Token: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, lease.Key, lease.Token, ttl).Result()
	if err != nil || !ok {
		return Lease{}, false, err
	}
	return lease, true, nil
}

func (l *Locker) Release(ctx context.Context, lease Lease) error {
	if l == nil || l.client == nil || lease.Key == "" || lease.Token == "" {
		return nil
	}
	return l.release.Run(ctx, l.client, []string{lease.Key}, lease.Token).Err()
}
