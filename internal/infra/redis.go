package infra

import (
	"context"
	"errors"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/apperr"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedis creates and validates a go-redis client connection.
func NewRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)

	// Validate connectivity at startup
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// Locker takes cross-terminal locks in redis.
type Locker struct {
	client *redislock.Client
	wait   time.Duration
}

// NewLocker waits up to wait for a held lock, retrying every 50ms. A lock
// still held after that is a Conflict.
func NewLocker(rdb *redis.Client, wait time.Duration) *Locker {
	return &Locker{client: redislock.New(rdb), wait: wait}
}

func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	retries := int(l.wait / (50 * time.Millisecond))
	lock, err := l.client.Obtain(ctx, "lock:"+key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, apperr.Conflict("another terminal is busy with %s; try again", key)
	}
	if err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			log.Warn().Err(err).Str("key", key).Msg("lock release failed")
		}
	}, nil
}
