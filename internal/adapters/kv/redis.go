package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/ports"
	"github.com/ammerola/medboard/internal/pkg/logger"
)

// RedisStore keeps entries as plain Redis strings
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

var _ ports.KVStore = (*RedisStore)(nil)

// NewRedisStore creates a store over client
func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.With(slog.String("component", "kv_redis")),
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get key", slog.String("key", key), logger.Err(err))
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return data, nil
}

// Set stores value; a zero ttl keeps the key until deleted.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.logger.ErrorContext(ctx, "failed to set key", slog.String("key", key), logger.Err(err))
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping error: %w", err)
	}
	return nil
}
