package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Locker serializes status-changing operations on one session.
type Locker interface {
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}

const (
	defaultLockTTL   = 30 * time.Second
	defaultLockRetry = 25 * time.Millisecond
)

// only delete the lock if we still own it
var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker is a Redis SETNX lock shared by every API replica.
type RedisLocker struct {
	redis  *redis.Client
	ttl    time.Duration
	retry  time.Duration
	logger zerolog.Logger
}

func NewRedisLocker(client *redis.Client, logger zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		redis:  client,
		ttl:    defaultLockTTL,
		retry:  defaultLockRetry,
		logger: logger.With().Str("component", "session_lock").Logger(),
	}
}

// Lock waits until the lock is acquired or ctx is done. The lock expires after 30s.
func (l *RedisLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := fmt.Sprintf("quiz:session:lock:%s", sessionID)
	value := uuid.NewString()

	for {
		acquired, err := l.redis.SetNX(ctx, key, value, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if acquired {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock: %w", ctx.Err())
		case <-time.After(l.retry):
		}
	}

	unlock := func() {
		if err := unlockScript.Run(context.Background(), l.redis, []string{key}, value).Err(); err != nil {
			l.logger.Warn().Err(err).Str("session_id", sessionID).Msg("release lock")
		}
	}
	return unlock, nil
}

type localEntry struct {
	mu   sync.Mutex
	refs int
}

// LocalLocker is an in-process Locker for single-replica deployments and tests.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry)}
}

func (l *LocalLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	e, ok := l.entries[sessionID]
	if !ok {
		e = &localEntry{}
		l.entries[sessionID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, sessionID)
		}
		l.mu.Unlock()
	}, nil
}
