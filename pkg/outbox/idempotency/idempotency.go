package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/telcobill-backend/pkg/redis"
)

// Manager is a Redis ledger of processed deliveries. Pub/Sub consumers key it by outbox event
// id and the Stripe webhook by Stripe event id. Each caller gets its own scope so ids never
// collide across consumers.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Scope returns a view of the ledger bound to one consumer, keyed by opaque string ids.
func (m *Manager) Scope(consumer string) *Scoped {
	return &Scoped{manager: m, consumer: consumer}
}

// Scoped is a consumer-bound view of the ledger.
type Scoped struct {
	manager  *Manager
	consumer string
}

// CheckAndMark returns true when id was already seen.
func (s *Scoped) CheckAndMark(ctx context.Context, id string) (bool, error) {
	key, err := s.key(id)
	if err != nil {
		return false, err
	}
	set, err := s.manager.store.SetNX(ctx, key, "1", s.manager.ttl)
	if err != nil {
		return false, fmt.Errorf("mark %s processed: %w", s.consumer, err)
	}
	return !set, nil
}

func (s *Scoped) Delete(ctx context.Context, id string) error {
	key, err := s.key(id)
	if err != nil {
		return err
	}
	return s.manager.store.Del(ctx, key)
}

func (s *Scoped) key(id string) (string, error) {
	if strings.TrimSpace(s.consumer) == "" {
		return "", errors.New("consumer name is required")
	}
	if strings.TrimSpace(id) == "" {
		return "", errors.New("event id is required")
	}
	return s.manager.store.IdempotencyKey("evt:processed:"+s.consumer, id), nil
}
