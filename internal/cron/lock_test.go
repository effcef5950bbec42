package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLocks struct {
	values map[string]string
	err    error
}

func (m *memoryLocks) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLocks) DeleteIfEquals(_ context.Context, key, expected string) (bool, error) {
	if m.values[key] != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryLocks) LockKey(name string) string { return "tb:lock:" + name }

func TestRedisLockIsPerJobAndOwnerScoped(t *testing.T) {
	store := &memoryLocks{values: map[string]string{}}
	replicaA, err := NewRedisLock(store, time.Minute)
	require.NoError(t, err)
	replicaB, err := NewRedisLock(store, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := replicaA.Acquire(ctx, JobPaymentRetry)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = replicaB.Acquire(ctx, JobPaymentRetry)
	require.NoError(t, err)
	require.False(t, ok, "second replica must not run the same job")

	ok, err = replicaB.Acquire(ctx, JobReservationSweep)
	require.NoError(t, err)
	require.True(t, ok, "different jobs lock independently")

	require.NoError(t, replicaB.Release(ctx, JobPaymentRetry))
	require.Contains(t, store.values, "tb:lock:"+JobPaymentRetry, "non-owner release must keep the lock")

	require.NoError(t, replicaA.Release(ctx, JobPaymentRetry))
	require.NotContains(t, store.values, "tb:lock:"+JobPaymentRetry)
}

func TestRedisLockLeavesTakenOverLockAlone(t *testing.T) {
	store := &memoryLocks{values: map[string]string{}}
	lock, err := NewRedisLock(store, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, JobInvoiceOverdue)
	require.NoError(t, err)
	require.True(t, ok)

	// TTL expired and another replica took the job.
	store.values["tb:lock:"+JobInvoiceOverdue] = "other-replica"

	require.NoError(t, lock.Release(ctx, JobInvoiceOverdue))
	assert.Equal(t, "other-replica", store.values["tb:lock:"+JobInvoiceOverdue])
}

func TestRedisLockErrors(t *testing.T) {
	_, err := NewRedisLock(nil, time.Minute)
	assert.Error(t, err)

	store := &memoryLocks{values: map[string]string{}, err: errors.New("redis down")}
	lock, err := NewRedisLock(store, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)

	_, err = lock.Acquire(context.Background(), "")
	assert.Error(t, err)
	_, err = lock.Acquire(context.Background(), JobPaymentRetry)
	assert.ErrorContains(t, err, "redis down")

	assert.NoError(t, lock.Release(context.Background(), JobPaymentRetry), "releasing an unheld job is a no-op")
}
