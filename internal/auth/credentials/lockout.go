package credentials

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lockout tracks failed login attempts per email. The policy itself
// (attempt count, window) is configuration, not code.
type Lockout interface {
	// Locked reports whether the key has crossed the failure threshold.
	Locked(ctx context.Context, key string) (bool, error)
	// RecordFailure counts one failed attempt within the window.
	RecordFailure(ctx context.Context, key string) error
	// Reset clears the counter after a successful login.
	Reset(ctx context.Context, key string) error
}

// RedisLockout counts failures in Redis with a rolling window: the
// first failure starts the window, the counter expires with it.
type RedisLockout struct {
	client      *redis.Client
	prefix      string
	maxAttempts int
	window      time.Duration
}

func NewRedisLockout(client *redis.Client, maxAttempts int, window time.Duration) *RedisLockout {
	return &RedisLockout{
		client:      client,
		prefix:      "lockout:",
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (l *RedisLockout) key(k string) string {
	return l.prefix + k
}

func (l *RedisLockout) Locked(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Get(ctx, l.key(key)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= l.maxAttempts, nil
}

func (l *RedisLockout) RecordFailure(ctx context.Context, key string) error {
	n, err := l.client.Incr(ctx, l.key(key)).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return l.client.Expire(ctx, l.key(key), l.window).Err()
	}
	return nil
}

func (l *RedisLockout) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}
