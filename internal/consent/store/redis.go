package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sitepulse/pkg/platform/sentinel"
)

const redisKeyPrefix = "sitepulse:consent:"

// RedisStore keeps records in Redis so every server instance sees the same
// decision for a visitor.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRetention expires records after ttl. Zero keeps them forever.
func WithRetention(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func redisKey(visitorID, key string) string {
	return redisKeyPrefix + visitorID + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, visitorID, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, redisKey(visitorID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get consent record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, visitorID, key string, value []byte) error {
	if err := s.client.Set(ctx, redisKey(visitorID, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set consent record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, visitorID, key string) error {
	if err := s.client.Del(ctx, redisKey(visitorID, key)).Err(); err != nil {
		return fmt.Errorf("redis delete consent record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}
