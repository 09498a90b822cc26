package lock

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocker(t *testing.T, cfg Config) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRedisLocker(client, "lock:po:", cfg, logger), mr
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	locker, mr := setupLocker(t, DefaultConfig())

	release, err := locker.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:po:abc"))

	release()
	assert.False(t, mr.Exists("lock:po:abc"))
}

func TestRedisLocker_HeldKeyIsNotObtained(t *testing.T) {
	cfg := Config{TTL: time.Minute, RetryInterval: 10 * time.Millisecond, MaxRetries: 2}
	locker, _ := setupLocker(t, cfg)

	release, err := locker.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	defer release()

	_, err = locker.Acquire(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNotObtained)
}

func TestRedisLocker_DifferentKeysDoNotContend(t *testing.T) {
	locker, _ := setupLocker(t, DefaultConfig())

	r1, err := locker.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer r1()

	r2, err := locker.Acquire(context.Background(), "b")
	require.NoError(t, err)
	r2()
}

func TestRedisLocker_ReleaseAfterExpiryIsHarmless(t *testing.T) {
	cfg := Config{TTL: time.Second, RetryInterval: 10 * time.Millisecond, MaxRetries: 1}
	locker, mr := setupLocker(t, cfg)

	release, err := locker.Acquire(context.Background(), "abc")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	assert.NotPanics(t, release)
}
