package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultLeaseTTL = 10 * time.Minute

// Locker hands out one lease per job name. A job runs only on the worker
// holding its lease, so different jobs can still run on different workers.
type Locker interface {
	TryLock(ctx context.Context, job string) (Lease, bool, error)
}

type Lease interface {
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLocker stores leases as SETNX keys under prefix. The TTL bounds how
// long a crashed worker blocks a job.
type RedisLocker struct {
	store    lockStore
	prefix   string
	ttl      time.Duration
	newToken func() string
}

func NewRedisLocker(store lockStore, prefix string, ttl time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("lock store required")
	}
	if prefix == "" {
		return nil, errors.New("lock prefix required")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLocker{store: store, prefix: prefix, ttl: ttl, newToken: uuid.NewString}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, job string) (Lease, bool, error) {
	key := l.prefix + ":" + job
	token := l.newToken()
	ok, err := l.store.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{store: l.store, key: key, token: token}, true, nil
}

type redisLease struct {
	store lockStore
	key   string
	token string
}

// Release drops the key unless it expired and another worker took it over.
func (l *redisLease) Release(ctx context.Context) error {
	current, err := l.store.Get(ctx, l.key)
	switch {
	case errors.Is(err, goredis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("read lease %s: %w", l.key, err)
	case current != l.token:
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("unlock %s: %w", l.key, err)
	}
	return nil
}
