// internal/core/ports/kv.go
package ports

import (
	"context"
	"time"
)

// KVStore is the persistent string-keyed byte store behind the case journal,
// preferences and ingestion job records. Get returns domain.ErrKeyNotFound
// for absent keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// KVPurger is implemented by stores that do not expire keys on their own.
type KVPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
