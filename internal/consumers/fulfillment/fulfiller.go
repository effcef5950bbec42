package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/msisdn"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
)

// ErrUnfulfillable marks orders that can never be activated. The consumer acks them so they
// stop redelivering.
var ErrUnfulfillable = errors.New("order cannot be fulfilled")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Fulfiller activates the number and line of a placed SIM order.
type Fulfiller struct {
	tx      txRunner
	subs    *subscriptions.Repository
	numbers *msisdn.Repository
	now     func() time.Time
}

func NewFulfiller(tx txRunner, subs *subscriptions.Repository, numbers *msisdn.Repository, now func() time.Time) (*Fulfiller, error) {
	if tx == nil || subs == nil || numbers == nil {
		return nil, fmt.Errorf("tx runner, subscription and msisdn repositories required")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Fulfiller{tx: tx, subs: subs, numbers: numbers, now: now}, nil
}

// Fulfill moves the number reserved → active and the subscription pending → active together.
// Replays of an already fulfilled order succeed without changes.
func (f *Fulfiller) Fulfill(ctx context.Context, event payloads.OrderPlacedEvent) error {
	return f.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := f.now()
		subs := f.subs.WithTx(tx)

		sub, err := subs.FindByID(ctx, event.SubscriptionID)
		if err != nil {
			if db.IsNotFound(err) {
				return fmt.Errorf("%w: subscription %s missing", ErrUnfulfillable, event.SubscriptionID)
			}
			return err
		}
		switch sub.Status {
		case enums.SubscriptionStatusPending:
		case enums.SubscriptionStatusActive:
			return nil
		default:
			return fmt.Errorf("%w: subscription is %s", ErrUnfulfillable, sub.Status)
		}

		ok, err := f.numbers.WithTx(tx).Activate(ctx, event.MsisdnID, event.CustomerID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: number %s is no longer held by the customer", ErrUnfulfillable, event.PhoneNumber)
		}

		ok, err = subs.Transition(ctx, sub.ID, []enums.SubscriptionStatus{enums.SubscriptionStatusPending}, map[string]any{
			"status":     enums.SubscriptionStatusActive,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("subscription %s changed during fulfillment", sub.ID)
		}
		return nil
	})
}
