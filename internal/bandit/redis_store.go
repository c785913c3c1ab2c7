package bandit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisArmStore keeps bandit state in Redis with a sliding TTL
type RedisArmStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisArmStore creates a store on client. A zero ttl keeps keys forever.
func NewRedisArmStore(client *redis.Client, prefix string, ttl time.Duration) *RedisArmStore {
	if prefix == "" {
		prefix = "lingofeed:bandit:"
	}
	return &RedisArmStore{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient parses a redis:// URL into a client
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (r *RedisArmStore) key(userID string) string {
	return r.prefix + userID
}

func (r *RedisArmStore) Get(ctx context.Context, userID string) (*UserState, error) {
	raw, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bandit state: %w", err)
	}
	var state UserState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode bandit state: %w", err)
	}
	return &state, nil
}

func (r *RedisArmStore) Put(ctx context.Context, userID string, state *UserState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode bandit state: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store bandit state: %w", err)
	}
	return nil
}

func (r *RedisArmStore) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete bandit state: %w", err)
	}
	return nil
}
