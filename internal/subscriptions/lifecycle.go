package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
)

// Lifecycle performs the suspend and reactivate transitions with their events. Payments
// and the admin endpoints share it.
type Lifecycle struct {
	repo   *Repository
	outbox outbox.Emitter
	now    func() time.Time
}

func NewLifecycle(repo *Repository, emitter outbox.Emitter, now func() time.Time) (*Lifecycle, error) {
	if repo == nil || emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repository and outbox required")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Lifecycle{repo: repo, outbox: emitter, now: now}, nil
}

// SuspendTx moves an active subscription to suspended.
func (l *Lifecycle) SuspendTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) (bool, error) {
	now := l.now()
	return l.transitionTx(ctx, tx, id, enums.SubscriptionStatusActive, enums.SubscriptionStatusSuspended,
		map[string]any{"status": enums.SubscriptionStatusSuspended, "suspended_at": now, "updated_at": now},
		enums.EventSubscriptionSuspended, reason)
}

// ReactivateTx moves a suspended subscription back to active.
func (l *Lifecycle) ReactivateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) (bool, error) {
	return l.transitionTx(ctx, tx, id, enums.SubscriptionStatusSuspended, enums.SubscriptionStatusActive,
		map[string]any{"status": enums.SubscriptionStatusActive, "suspended_at": nil, "updated_at": l.now()},
		enums.EventSubscriptionReactivated, reason)
}

func (l *Lifecycle) transitionTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to enums.SubscriptionStatus, updates map[string]any, eventType enums.OutboxEventType, reason string) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move subscription from %s to %s", from, to)
	}
	repo := l.repo.WithTx(tx)
	ok, err := repo.Transition(ctx, id, []enums.SubscriptionStatus{from}, updates)
	if err != nil || !ok {
		return false, err
	}
	sub, err := repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	err = l.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Data: payloads.SubscriptionStatusEvent{
			SubscriptionID: sub.ID,
			CustomerID:     sub.CustomerID,
			PhoneNumber:    sub.PhoneNumber,
			Status:         to,
			Reason:         reason,
		},
	})
	return err == nil, err
}
