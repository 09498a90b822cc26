package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T, ttl time.Duration) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisIdempotencyStore(client, ttl), mr
}

func TestRedisIdempotencyStore_AddAndContains(t *testing.T) {
	store, mr := setupRedisStore(t, time.Hour)
	ctx := context.Background()

	got, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, got)

	require.NoError(t, store.Add(ctx, "evt-1"))

	got, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, got)
	assert.True(t, mr.Exists("kafka:processed:evt-1"))
}

func TestRedisIdempotencyStore_Expiry(t *testing.T) {
	store, mr := setupRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "evt-1"))
	mr.FastForward(2 * time.Minute)

	got, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestRedisIdempotencyStore_Unavailable(t *testing.T) {
	store, mr := setupRedisStore(t, time.Minute)
	mr.Close()

	_, err := store.Contains(context.Background(), "evt-1")
	assert.Error(t, err)
}

func TestIdempotentHandler_WithRedisStore_SkipsRedelivery(t *testing.T) {
	store, _ := setupRedisStore(t, time.Hour)
	calls := 0
	handler := IdempotentHandler(store, func(ctx context.Context, event *Event) error {
		calls++
		return nil
	}, testLogger())

	evt := testEvent("evt-sale-1")
	require.NoError(t, handler(context.Background(), evt))
	require.NoError(t, handler(context.Background(), evt))
	assert.Equal(t, 1, calls)
}
