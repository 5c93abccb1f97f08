package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockTimeout is returned when the distributed lock stays taken too long.
var ErrLockTimeout = errors.New("timed out waiting for user lock")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`)

type userLocker interface {
	Lock(ctx context.Context, userID uint) (func(), error)
}

// RedisLocker layers a Redis SET NX lock over an in-process locker so
// several replicas serialise writes for the same user. When Redis is nil or
// unreachable only the local lock is taken.
type RedisLocker struct {
	client *redis.Client
	local  userLocker
	logger *zap.Logger
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisLocker wraps local with a Redis lock on client.
func NewRedisLocker(client *redis.Client, local userLocker, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		local:  local,
		logger: logger,
		ttl:    15 * time.Second,
		wait:   10 * time.Second,
		retry:  50 * time.Millisecond,
	}
}

// Lock takes the local lock, then the Redis one.
func (l *RedisLocker) Lock(ctx context.Context, userID uint) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	if l.client == nil {
		return unlockLocal, nil
	}

	key := fmt.Sprintf("punchclock:lock:user:%d", userID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				unlockLocal()
				return nil, ctx.Err()
			}
			l.logger.Warn("redis lock unavailable, using local lock only", zap.Uint("user_id", userID), zap.Error(err))
			return unlockLocal, nil
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			unlockLocal()
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("redis lock release failed", zap.Uint("user_id", userID), zap.Error(err))
		}
		unlockLocal()
	}, nil
}
