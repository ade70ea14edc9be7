// Package kv holds the KVStore implementations selectable by STORAGE_DRIVER.
package kv

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/ports"
)

// MemoryStore keeps entries in process memory. Contents are lost on restart.
type MemoryStore struct {
	cache  *cache.Cache
	logger *slog.Logger
}

var _ ports.KVStore = (*MemoryStore)(nil)

// NewMemoryStore creates a memory store that sweeps expired entries every
// cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration, logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		cache:  cache.New(cache.NoExpiration, cleanupInterval),
		logger: logger.With(slog.String("component", "kv_memory")),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), v.([]byte)...), nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	s.cache.Set(key, append([]byte(nil), value...), ttl)
	s.logger.DebugContext(ctx, "kv set", slog.String("key", key), slog.Int("bytes", len(value)))
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Len reports the number of stored entries, expired ones included until swept.
func (s *MemoryStore) Len() int { return s.cache.ItemCount() }
