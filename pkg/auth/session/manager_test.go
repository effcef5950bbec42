package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *memoryStore) GetDel(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	delete(m.data, key)
	return val, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) AccessSessionKey(accessID string) string {
	return "sess:" + accessID
}

func newTestManager() (*Manager, *memoryStore) {
	store := newMemoryStore()
	return &Manager{store: store, ttl: time.Hour, now: time.Now}, store
}

func TestRotateIssuesNewPairAndDropsOld(t *testing.T) {
	manager, store := newTestManager()
	ctx := context.Background()
	customerID := uuid.New()

	token, err := manager.Generate(ctx, "access-1", customerID)
	require.NoError(t, err)

	newAccessID, newToken, err := manager.Rotate(ctx, "access-1", customerID, token)
	require.NoError(t, err)
	assert.NotEqual(t, token, newToken)

	_, exists := store.data[store.AccessSessionKey("access-1")]
	assert.False(t, exists, "old session must be removed")

	live, err := manager.HasSession(ctx, newAccessID)
	require.NoError(t, err)
	assert.True(t, live)

	_, _, err = manager.Rotate(ctx, "access-1", customerID, token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "a rotated token cannot be replayed")
}

func TestRotateRejectsWrongTokenOrCustomer(t *testing.T) {
	manager, store := newTestManager()
	ctx := context.Background()
	customerID := uuid.New()

	token, err := manager.Generate(ctx, "access-2", customerID)
	require.NoError(t, err)

	_, _, err = manager.Rotate(ctx, "access-2", customerID, "wrong")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, _, err = manager.Rotate(ctx, "access-2", uuid.New(), token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, exists := store.data[store.AccessSessionKey("access-2")]
	assert.True(t, exists, "failed rotation must keep the session")
}

func TestRotateRejectsCorruptRecord(t *testing.T) {
	manager, store := newTestManager()
	store.data[store.AccessSessionKey("access-3")] = "not-a-record"

	_, _, err := manager.Rotate(context.Background(), "access-3", uuid.New(), "anything")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevokeEndsSession(t *testing.T) {
	manager, _ := newTestManager()
	ctx := context.Background()

	_, err := manager.Generate(ctx, "access-4", uuid.New())
	require.NoError(t, err)
	require.NoError(t, manager.Revoke(ctx, "access-4"))

	live, err := manager.HasSession(ctx, "access-4")
	require.NoError(t, err)
	assert.False(t, live)
}

func TestGenerateRequiresCustomer(t *testing.T) {
	manager, _ := newTestManager()
	_, err := manager.Generate(context.Background(), "access-5", uuid.Nil)
	assert.Error(t, err)
}

func TestStoredRecordNeverHoldsRawToken(t *testing.T) {
	manager, store := newTestManager()
	customerID := uuid.New()

	token, err := manager.Generate(context.Background(), "access-6", customerID)
	require.NoError(t, err)

	raw := store.data[store.AccessSessionKey("access-6")]
	assert.NotContains(t, raw, token)
	assert.Contains(t, raw, customerID.String())
}

func TestRotateLosesRaceWhenSessionAlreadyConsumed(t *testing.T) {
	manager, store := newTestManager()
	ctx := context.Background()
	customerID := uuid.New()

	token, err := manager.Generate(ctx, "access-7", customerID)
	require.NoError(t, err)

	racing := &racingStore{memoryStore: store}
	manager.store = racing
	_, _, err = manager.Rotate(ctx, "access-7", customerID, token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

// racingStore simulates another rotation consuming the key between the read
// and the delete.
type racingStore struct {
	*memoryStore
}

func (r *racingStore) GetDel(ctx context.Context, key string) (string, error) {
	_ = r.memoryStore.Del(ctx, key)
	return r.memoryStore.GetDel(ctx, key)
}
