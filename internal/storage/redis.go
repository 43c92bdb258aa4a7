package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
)

// Redis keeps the session in a Redis hash so it can be shared between
// machines (for example a jump host and a workstation using the same profile).
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis creates a Redis storage for the given profile. A zero ttl keeps
// the hash until it is cleared.
func NewRedis(client *redis.Client, profile string, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		key:    fmt.Sprintf("schoolctl:session:%s", profile),
		ttl:    ttl,
	}
}

// OpenRedis parses a redis:// URL and returns a storage bound to profile.
func OpenRedis(ctx context.Context, url, profile string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageDriver, "invalid redis url", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.ErrCodeStorageDriver, "redis is not reachable", err).
			WithSuggestion("Check storage.redis_url in the config file")
	}

	return NewRedis(client, profile, ttl), nil
}

// Key returns the hash key holding the session.
func (r *Redis) Key() string {
	return r.key
}

// Get retrieves a value by key.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.HGet(ctx, r.key, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, errors.Wrap(errors.ErrCodeStorageRead, "failed to read session value", err)
	}
	return value, true, nil
}

// Set stores a value and refreshes the expiry.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key, key, value)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to write session value", err)
	}
	return nil
}

// Remove deletes a value.
func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.HDel(ctx, r.key, key).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to remove session value", err)
	}
	return nil
}

// Clear deletes the whole session hash.
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to clear session", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
