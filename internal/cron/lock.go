package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 30 * time.Minute

// Lock keeps a job from running on two replicas at once.
type Lock interface {
	Acquire(ctx context.Context, job string) (bool, error)
	Release(ctx context.Context, job string) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, expected string) (bool, error)
	LockKey(name string) string
}

// RedisLock holds one key per job whose value is a token unique to the
// acquiring call. The TTL frees the job if a replica dies mid-run.
type RedisLock struct {
	store lockStore
	ttl   time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLock(store lockStore, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, ttl: ttl, tokens: make(map[string]string)}, nil
}

func (l *RedisLock) Acquire(ctx context.Context, job string) (bool, error) {
	if job == "" {
		return false, errors.New("job name is required")
	}
	token := uuid.NewString()
	won, err := l.store.SetNX(ctx, l.store.LockKey(job), token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s lock: %w", job, err)
	}
	if won {
		l.mu.Lock()
		l.tokens[job] = token
		l.mu.Unlock()
	}
	return won, nil
}

// Release deletes the key only if it still holds this replica's token. A lock
// that expired and was taken by another replica is left alone.
func (l *RedisLock) Release(ctx context.Context, job string) error {
	l.mu.Lock()
	token, held := l.tokens[job]
	delete(l.tokens, job)
	l.mu.Unlock()
	if !held {
		return nil
	}
	if _, err := l.store.DeleteIfEquals(ctx, l.store.LockKey(job), token); err != nil {
		return fmt.Errorf("release %s lock: %w", job, err)
	}
	return nil
}
