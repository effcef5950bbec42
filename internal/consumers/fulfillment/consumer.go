package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/delivery"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
)

// ConsumerName scopes the fulfillment dedupe marks and metrics.
const ConsumerName = "fulfillment"

type orderFulfiller interface {
	Fulfill(ctx context.Context, event payloads.OrderPlacedEvent) error
}

// Handler activates the line behind each order_placed event.
type Handler struct {
	fulfiller orderFulfiller
}

func NewHandler(fulfiller orderFulfiller) (*Handler, error) {
	if fulfiller == nil {
		return nil, fmt.Errorf("fulfiller required")
	}
	return &Handler{fulfiller: fulfiller}, nil
}

// Accepts keeps unrelated events away from the dedupe store.
func Accepts(eventType enums.OutboxEventType) bool {
	return eventType == enums.EventOrderPlaced
}

func (h *Handler) Handle(ctx context.Context, msg *delivery.Message) error {
	if !Accepts(msg.EventType) {
		return delivery.ErrSkip
	}
	var event payloads.OrderPlacedEvent
	if err := msg.Bind(&event); err != nil {
		return delivery.Permanent(err)
	}
	if err := h.fulfiller.Fulfill(ctx, event); err != nil {
		if errors.Is(err, ErrUnfulfillable) {
			return delivery.Permanent(err)
		}
		return fmt.Errorf("fulfill subscription %s: %w", event.SubscriptionID, err)
	}
	return nil
}
