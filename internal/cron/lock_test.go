package cron

import (
	"context"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{data: map[string]string{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestRedisLockerIsExclusivePerJob(t *testing.T) {
	store := newMemoryLockStore()
	first, err := NewRedisLocker(store, "cron", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLocker(store, "cron", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	lease, ok, err := first.TryLock(ctx, "order-expiry")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryLock(ctx, "order-expiry")
	require.NoError(t, err)
	assert.False(t, ok)

	other, ok, err := second.TryLock(ctx, "outbox-retention")
	require.NoError(t, err)
	assert.True(t, ok, "leases are per job")
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	_, ok, err = second.TryLock(ctx, "order-expiry")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLeaseLeavesForeignOwner(t *testing.T) {
	store := newMemoryLockStore()
	locker, err := NewRedisLocker(store, "cron", 0)
	require.NoError(t, err)
	ctx := context.Background()

	lease, ok, err := locker.TryLock(ctx, "order-expiry")
	require.NoError(t, err)
	require.True(t, ok)

	// lease expired and another worker took it
	store.data["cron:order-expiry"] = "someone-else"
	require.NoError(t, lease.Release(ctx))
	assert.Equal(t, "someone-else", store.data["cron:order-expiry"])
}

func TestRedisLeaseReleaseAfterExpiry(t *testing.T) {
	store := newMemoryLockStore()
	locker, err := NewRedisLocker(store, "cron", time.Minute)
	require.NoError(t, err)

	lease, ok, err := locker.TryLock(context.Background(), "order-expiry")
	require.NoError(t, err)
	require.True(t, ok)
	delete(store.data, "cron:order-expiry")
	assert.NoError(t, lease.Release(context.Background()))
}

func TestNewRedisLockerValidates(t *testing.T) {
	_, err := NewRedisLocker(nil, "cron", time.Second)
	assert.Error(t, err)
	_, err = NewRedisLocker(newMemoryLockStore(), "", time.Second)
	assert.Error(t, err)
}
