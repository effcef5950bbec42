package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/config"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
)

// EventDescriptor says where an event type is published and how its data decodes.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row checked against its descriptor, with typed data.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will fail the same way on every attempt.
// The publisher dead-letters these at once.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func permanent(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// bind pairs an event type with its aggregate and payload struct.
func bind[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		PayloadFactory: func() any { return new(T) },
	}
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes order events to the orders topic, money and
// lifecycle events to billing, and number inventory events to inventory.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	routes := []struct {
		name   string
		topic  string
		events []EventDescriptor
	}{
		{"orders", cfg.OrdersTopic, []EventDescriptor{
			bind[payloads.OrderPlacedEvent](enums.EventOrderPlaced, enums.AggregateOrder),
		}},
		{"billing", cfg.BillingTopic, []EventDescriptor{
			bind[payloads.PlanChangedEvent](enums.EventPlanChanged, enums.AggregateSubscription),
			bind[payloads.InvoiceCreatedEvent](enums.EventInvoiceCreated, enums.AggregateInvoice),
			bind[payloads.ContractCreatedEvent](enums.EventContractCreated, enums.AggregateDeviceContract),
			bind[payloads.SubscriptionStatusEvent](enums.EventSubscriptionSuspended, enums.AggregateSubscription),
			bind[payloads.SubscriptionStatusEvent](enums.EventSubscriptionReactivated, enums.AggregateSubscription),
			bind[payloads.PaymentSettledEvent](enums.EventPaymentSettled, enums.AggregatePaymentAttempt),
			bind[payloads.PaymentFailedEvent](enums.EventPaymentFailed, enums.AggregatePaymentAttempt),
		}},
		{"inventory", cfg.InventoryTopic, []EventDescriptor{
			bind[payloads.ReservationReleasedEvent](enums.EventReservationReleased, enums.AggregateMsisdn),
			bind[payloads.PortingCompletedEvent](enums.EventPortingCompleted, enums.AggregatePorting),
		}},
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, route := range routes {
		if route.topic == "" {
			return nil, fmt.Errorf("%s topic is required", route.name)
		}
		for _, desc := range route.events {
			if _, dup := reg.entries[desc.EventType]; dup {
				return nil, fmt.Errorf("event %s registered twice", desc.EventType)
			}
			desc.Topic = route.topic
			reg.entries[desc.EventType] = desc
		}
	}
	return reg, nil
}

// Topics lists the distinct destination topics, sorted.
func (r *EventRegistry) Topics() []string {
	set := make(map[string]struct{}, 3)
	for _, desc := range r.entries {
		set[desc.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(set))
	for t := range set {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks the row's type, aggregate and envelope and decodes its data.
// Every failure is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("%s belongs to %s aggregates, row has %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("%s row has no aggregate id", event.EventType)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	if envelope.Version <= 0 {
		return nil, permanent("%s envelope has no version", event.EventType)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("%s envelope has no data", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s data: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

// IsNonRetryable reports whether err, or anything it wraps, is a NonRetryableError.
func IsNonRetryable(err error) bool {
	var nr NonRetryableError
	return errors.As(err, &nr)
}
