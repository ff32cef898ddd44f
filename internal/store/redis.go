package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore hands results over through a single Redis key with a TTL.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore connects using a redis:// URL.
func NewRedisStore(connStr string, key string, ttl time.Duration, logger zerolog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	logger.Info().Str("redis", opt.Addr).Int("db", opt.DB).Str("key", key).Msg("using redis handoff store")
	return newRedisStore(redis.NewClient(opt), key, ttl), nil
}

func newRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: key, ttl: ttl}
}

// Save overwrites the previous result.
func (r *RedisStore) Save(ctx context.Context, raw []byte) error {
	if err := r.client.Set(ctx, r.key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.key, err)
	}
	return nil
}

// Take reads and deletes the result atomically.
func (r *RedisStore) Take(ctx context.Context) ([]byte, bool, error) {
	b, err := r.client.GetDel(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("getdel %s: %w", r.key, err)
	}
	return b, true, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
