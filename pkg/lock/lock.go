// Package lock provides short-lived distributed mutexes backed by Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when the key stays held by someone else for
// the whole retry window.
var ErrNotObtained = redislock.ErrNotObtained

// Config tunes lock acquisition.
type Config struct {
	// TTL bounds how long a crashed holder can keep the key.
	TTL time.Duration
	// RetryInterval is the pause between acquisition attempts.
	RetryInterval time.Duration
	// MaxRetries caps acquisition attempts after the first one.
	MaxRetries int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TTL:           30 * time.Second,
		RetryInterval: 100 * time.Millisecond,
		MaxRetries:    20,
	}
}

// RedisLocker hands out redislock mutexes under a key prefix.
type RedisLocker struct {
	client *redislock.Client
	prefix string
	cfg    Config
	logger *slog.Logger
}

// NewRedisLocker creates a locker on rdb. Keys are namespaced with prefix.
func NewRedisLocker(rdb *goredis.Client, prefix string, cfg Config, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		prefix: prefix,
		cfg:    cfg,
		logger: logger,
	}
}

// Acquire blocks until key is held or the retry budget runs out. The returned
// release func is safe to call once; it logs but does not return errors since
// the TTL frees the key anyway.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.cfg.RetryInterval), l.cfg.MaxRetries),
	}

	fullKey := l.prefix + key
	lk, err := l.client.Obtain(ctx, fullKey, l.cfg.TTL, opts)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrNotObtained
		}
		return nil, fmt.Errorf("obtain lock %s: %w", fullKey, err)
	}

	release := func() {
		// Use a fresh context: the request context may already be canceled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lk.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release lock",
				slog.String("key", fullKey),
				slog.String("error", err.Error()),
			)
		}
	}
	return release, nil
}
