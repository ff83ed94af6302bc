package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed pending-state store. Entries
// expire after ttl, which bounds how long a user can sit on the
// provider's consent screen.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "oauthstate:",
		ttl:    ttl,
	}
}

func (r *RedisStore) key(token string) string {
	return r.prefix + token
}

func (r *RedisStore) Save(ctx context.Context, token string, p Pending) error {
	if token == "" {
		return fmt.Errorf("state: empty token")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("state: failed to marshal: %w", err)
	}

	return r.client.Set(ctx, r.key(token), data, r.ttl).Err()
}

// Consume removes and returns the pending entry in one round trip.
// GETDEL keeps the token single-use even with concurrent callbacks.
func (r *RedisStore) Consume(ctx context.Context, token string) (*Pending, error) {
	val, err := r.client.GetDel(ctx, r.key(token)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p Pending
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("state: failed to unmarshal: %w", err)
	}

	return &p, nil
}
