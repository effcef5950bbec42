package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	keys    map[string]time.Duration
	failSet error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if _, ok := m.keys[key]; ok {
		return "1", nil
	}
	return "", nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.failSet != nil {
		return false, m.failSet
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "tb:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func TestScopeSeesRedelivery(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.NewString()

	already, err := manager.Scope("fulfillment").CheckAndMark(ctx, eventID)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, 24*time.Hour, store.keys["tb:idempotency:evt:processed:fulfillment:"+eventID])

	already, err = manager.Scope("fulfillment").CheckAndMark(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, already)

	already, err = manager.Scope("notifications").CheckAndMark(ctx, eventID)
	require.NoError(t, err)
	assert.False(t, already, "consumers keep separate ledgers")
}

func TestDeleteAllowsRetry(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.NewString()

	_, err = manager.Scope("analytics").CheckAndMark(ctx, eventID)
	require.NoError(t, err)
	require.NoError(t, manager.Scope("analytics").Delete(ctx, eventID))

	already, err := manager.Scope("analytics").CheckAndMark(ctx, eventID)
	require.NoError(t, err)
	assert.False(t, already)
}

func TestScopedAcceptsStringIDs(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	guard := manager.Scope("stripe-webhook")
	ctx := context.Background()

	already, err := guard.CheckAndMark(ctx, "evt_1PqXyZ")
	require.NoError(t, err)
	assert.False(t, already)

	already, err = guard.CheckAndMark(ctx, "evt_1PqXyZ")
	require.NoError(t, err)
	assert.True(t, already)

	_, err = guard.CheckAndMark(ctx, " ")
	assert.Error(t, err)
}

func TestRejectsMissingInputs(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)

	_, err = manager.Scope("").CheckAndMark(context.Background(), uuid.NewString())
	assert.Error(t, err)
	_, err = manager.Scope("fulfillment").CheckAndMark(context.Background(), "")
	assert.Error(t, err)

	_, err = NewManager(nil, time.Hour)
	assert.Error(t, err)
}

func TestStoreErrorsPropagate(t *testing.T) {
	store := newMemoryStore()
	store.failSet = errors.New("connection reset")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.Scope("fulfillment").CheckAndMark(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, store.failSet)
}
