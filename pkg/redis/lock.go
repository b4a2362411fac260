package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out run locks so that two hosts never consolidate into the
// same output at once
type Locker struct {
	client *Client
	prefix string
}

// Lease is a held lock. Release it when the guarded work is done.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

// release only deletes the key while it still carries our token
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// NewLocker creates a lock helper
func NewLocker(client *Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// LockKey returns the full key of a named lock
func (l *Locker) LockKey(name string) string {
	return fmt.Sprintf("%s:lock:%s", l.prefix, name)
}

// Acquire tries to take the named lock for ttl. ok=false means another
// holder owns it. With Redis disabled the lock is always granted.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, bool, error) {
	lease := &Lease{locker: l, key: l.LockKey(name), token: uuid.NewString()}
	if !l.client.Enabled() {
		return lease, true, nil
	}

	ok, err := l.client.Redis().SetNX(ctx, lease.key, lease.token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock acquire failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return lease, true, nil
}

// Release gives the lock back. Releasing an expired or stolen lock is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || !l.locker.client.Enabled() {
		return nil
	}
	if err := releaseScript.Run(ctx, l.locker.client.Redis(), []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("lock release failed: %w", err)
	}
	return nil
}

// Key returns the lock key
func (l *Lease) Key() string {
	return l.key
}
