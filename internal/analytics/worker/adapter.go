// Package worker feeds outbox deliveries into the analytics router.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/telcobill-backend/internal/analytics/router"
	"github.com/angelmondragon/telcobill-backend/internal/analytics/types"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/delivery"
)

// ConsumerName scopes the analytics dedupe marks and metrics.
const ConsumerName = "analytics"

// Handler consumes one analytics envelope.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// Adapter maps router verdicts onto delivery settlement: unsupported events
// are skipped and malformed ones dropped. Anything else is retried.
type Adapter struct {
	next Handler
}

func NewAdapter(next Handler) (*Adapter, error) {
	if next == nil {
		return nil, errors.New("analytics handler is required")
	}
	return &Adapter{next: next}, nil
}

func (a *Adapter) Handle(ctx context.Context, msg *delivery.Message) error {
	envelope, err := Envelope(msg)
	if err != nil {
		return delivery.Permanent(err)
	}
	err = a.next.Handle(ctx, envelope)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, router.ErrUnsupportedEventType):
		return delivery.ErrSkip
	case errors.Is(err, router.ErrMalformedPayload):
		return delivery.Permanent(err)
	default:
		return err
	}
}

// Envelope projects a delivery into the row-building envelope. BigQuery rows
// are keyed by aggregate, so the attribute is mandatory here.
func Envelope(msg *delivery.Message) (types.Envelope, error) {
	if msg.AggregateID == "" || msg.AggregateType == "" {
		return types.Envelope{}, fmt.Errorf("event %s has no aggregate attributes", msg.EventID)
	}
	return types.Envelope{
		EventID:       msg.EventID.String(),
		EventType:     msg.EventType,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		OccurredAt:    msg.OccurredAt,
		Payload:       msg.Data,
	}, nil
}
