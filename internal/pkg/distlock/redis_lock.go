package distlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces lock keys on a Redis shared with other services.
const keyPrefix = "ga4-reports:lock:"

// Both scripts act only while the key still carries the caller's token.
var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)
	refreshScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// RedisLock is a SET NX lock whose value is a per-instance token, so only
// the instance that acquired it can release or refresh it.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLock creates an unacquired lock on key.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    keyPrefix + key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire implements DistLock.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", l.key, err)
	}
	return ok, nil
}

// Release implements DistLock. ErrNotOwner means the key expired or was
// taken by another holder first.
func (l *RedisLock) Release(ctx context.Context) error {
	return l.ifOwner(ctx, releaseScript)
}

// Refresh resets the expiry to the lock's TTL.
func (l *RedisLock) Refresh(ctx context.Context) error {
	return l.ifOwner(ctx, refreshScript, l.ttl.Milliseconds())
}

// TTL is the expiry applied on Acquire and Refresh.
func (l *RedisLock) TTL() time.Duration { return l.ttl }

func (l *RedisLock) ifOwner(ctx context.Context, script *redis.Script, args ...interface{}) error {
	n, err := script.Run(ctx, l.client, []string{l.key}, append([]interface{}{l.token}, args...)...).Int()
	if err != nil {
		return fmt.Errorf("lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotOwner
	}
	return nil
}

// RedisProvider creates RedisLocks on a shared client.
type RedisProvider struct {
	client *redis.Client
}

// NewLock implements Provider.
func (p *RedisProvider) NewLock(key string, ttl time.Duration) DistLock {
	return NewRedisLock(p.client, key, ttl)
}
