package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/medboard/internal/adapters/kv"
	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/test/helpers"
)

func TestRedisStore(t *testing.T) {
	testRedis := helpers.SetupTestRedis(t)
	store := kv.NewRedisStore(testRedis.Client, helpers.TestLogger())
	ctx := context.Background()

	_, err := store.Get(ctx, "medboard:cases:a")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "medboard:cases:a", []byte(`[]`), 0))
	got, err := store.Get(ctx, "medboard:cases:a")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)
	assert.Equal(t, time.Duration(0), testRedis.Server.TTL("medboard:cases:a"))

	require.NoError(t, store.Set(ctx, "medboard:jobs:1", []byte(`{}`), time.Hour))
	assert.Equal(t, time.Hour, testRedis.Server.TTL("medboard:jobs:1"))
	testRedis.Server.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "medboard:jobs:1")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, store.Delete(ctx, "medboard:cases:a"))
	assert.False(t, testRedis.Server.Exists("medboard:cases:a"))
	assert.NoError(t, store.Ping(ctx))
}

func TestRedisStore_ConnectionError(t *testing.T) {
	testRedis := helpers.SetupTestRedis(t)
	store := kv.NewRedisStore(testRedis.Client, helpers.TestLogger())
	testRedis.Server.Close()

	_, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrKeyNotFound)
	assert.Error(t, store.Ping(context.Background()))
}
