// Package lock serializes critical sections keyed by a string, either inside
// one process or across API replicas through Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/scrapfield-backend/pkg/redis"
)

const (
	defaultLockTTL   = 10 * time.Second
	defaultRetryWait = 25 * time.Millisecond
	defaultMaxWait   = 5 * time.Second
)

// ErrNotAcquired is returned when a lock could not be taken before the wait budget ran out.
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases a held lock. It is safe to call once.
type Unlock func()

// Locker acquires exclusive access to key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Unlock, error)
}

// redisStore defines the operations used by RedisLocker.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) (bool, error)
}

// RedisLocker implements Locker using Redis SETNX + TTL, polling until the key frees up.
type RedisLocker struct {
	client    redisStore
	keyFn     func(string) string
	ttl       time.Duration
	retryWait time.Duration
	maxWait   time.Duration
}

// RedisOption tunes a RedisLocker.
type RedisOption func(*RedisLocker)

// WithTTL bounds how long a crashed holder can keep the key.
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithWait sets the polling interval and the total wait budget.
func WithWait(retry, max time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if retry > 0 {
			l.retryWait = retry
		}
		if max > 0 {
			l.maxWait = max
		}
	}
}

// WithKeyFunc namespaces lock keys, e.g. with redis.Client.LockKey.
func WithKeyFunc(fn func(string) string) RedisOption {
	return func(l *RedisLocker) {
		if fn != nil {
			l.keyFn = fn
		}
	}
}

// NewRedisLocker constructs a Redis-backed locker.
func NewRedisLocker(client redisStore, opts ...RedisOption) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	l := &RedisLocker{
		client:    client,
		keyFn:     func(k string) string { return k },
		ttl:       defaultLockTTL,
		retryWait: defaultRetryWait,
		maxWait:   defaultMaxWait,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Acquire polls SETNX until the key is owned, the wait budget runs out or ctx ends.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	redisKey := l.keyFn(key)
	owner := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, owner, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("setnx: %w", err)
		}
		if ok {
			return func() { l.release(redisKey, owner) }, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryWait):
		}
	}
}

// release frees the lock only if the owner value still matches. A lock that
// expired and was taken by another owner is left alone.
func (l *RedisLocker) release(key, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _ = l.client.ReleaseLock(ctx, key, owner)
}

// LocalLocker is an in-process keyed mutex.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an empty keyed mutex.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Acquire blocks until key is free or ctx ends.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *LocalLocker) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// New picks the Redis locker when a client is supplied and distributed locks are enabled.
func New(client *redis.Client, distributed bool) (Locker, error) {
	if distributed && client != nil {
		return NewRedisLocker(client, WithKeyFunc(func(k string) string { return client.LockKey(k) }))
	}
	return NewLocalLocker(), nil
}
