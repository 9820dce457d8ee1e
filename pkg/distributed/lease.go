package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when the lease belongs to another holder or expired.
var ErrNotHeld = errors.New("lease not held by this instance")

// acquireScript renews the lease when ARGV[1] already holds it and takes it when free.
var acquireScript = redis.NewScript(`
	local current = redis.call("get", KEYS[1])
	if current == ARGV[1] then
		redis.call("pexpire", KEYS[1], ARGV[2])
		return 1
	end
	if not current then
		redis.call("set", KEYS[1], ARGV[1], "PX", ARGV[2])
		return 1
	end
	return 0
`)

// releaseScript deletes the key only when we own it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Lease is a renewable, expiring ownership marker in Redis. Exactly one holder owns the
// key at a time; a holder that stops renewing loses it after the TTL.
type Lease struct {
	client redis.Scripter
	key    string
	holder string
	ttl    time.Duration
}

// NewLease creates a lease handle with a random holder identity.
func NewLease(client redis.Scripter, key string, ttl time.Duration) *Lease {
	return &Lease{
		client: client,
		key:    key,
		holder: generateHolderID(),
		ttl:    ttl,
	}
}

func generateHolderID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Acquire takes the lease if it is free or extends it if this instance already holds it.
// It never blocks waiting for another holder.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	res, err := acquireScript.Run(ctx, l.client, []string{l.key}, l.holder, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", l.key, err)
	}
	return res == 1, nil
}

// Release gives the lease up so another replica can take over without waiting for expiry.
func (l *Lease) Release(ctx context.Context) error {
	res, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.holder).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.key, err)
	}
	if res == 0 {
		return ErrNotHeld
	}
	return nil
}

// Key returns the Redis key of the lease.
func (l *Lease) Key() string {
	return l.key
}

// Holder returns this instance's identity as stored in the lease key.
func (l *Lease) Holder() string {
	return l.holder
}
