// Package delivery runs the receive loop shared by every outbox event subscriber:
// decode the envelope, drop redeliveries, hand the event to a handler and
// settle the message from the handler's verdict.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
)

// Message is a published outbox event as a subscriber sees it.
type Message struct {
	MessageID     string
	EventID       uuid.UUID
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Actor         *outbox.ActorRef
	Data          json.RawMessage
}

// Bind unmarshals the event data into dest.
func (m *Message) Bind(dest any) error {
	if err := json.Unmarshal(m.Data, dest); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.EventType, err)
	}
	return nil
}

// Decode reads the routing attributes the publisher sets and the stored envelope.
// Aggregate attributes are optional; event_type and the envelope event id are not.
func Decode(msg *pubsub.Message) (*Message, error) {
	attr := func(key string) string { return strings.TrimSpace(msg.Attributes[key]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	rawID := strings.TrimSpace(envelope.EventID)
	if rawID == "" {
		rawID = attr("event_id")
	}
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("event_id %q: %w", rawID, err)
	}

	out := &Message{
		MessageID:   msg.ID,
		EventID:     eventID,
		EventType:   eventType,
		AggregateID: attr("aggregate_id"),
		OccurredAt:  envelope.OccurredAt.UTC(),
		Actor:       envelope.Actor,
		Data:        envelope.Data,
	}
	if raw := attr("aggregate_type"); raw != "" {
		if out.AggregateType, err = enums.ParseOutboxAggregateType(raw); err != nil {
			return nil, fmt.Errorf("aggregate_type: %w", err)
		}
	}
	if out.OccurredAt.IsZero() {
		if created, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			out.OccurredAt = created.UTC()
		}
	}
	return out, nil
}

// Handler processes one event. Return ErrSkip for events it ignores and wrap
// failures that redelivery cannot fix with Permanent.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type HandlerFunc func(ctx context.Context, msg *Message) error

func (fn HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return fn(ctx, msg)
}

// ErrSkip acks an event the handler has no interest in.
var ErrSkip = errors.New("event skipped")

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as one a retry will not fix. The message is acked and
// the dedupe mark is kept.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Outcome is how a single delivery was settled.
type Outcome string

const (
	OutcomeHandled   Outcome = "handled"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDropped   Outcome = "dropped"
	OutcomeRetry     Outcome = "retry"
)

func (o Outcome) ack() bool { return o != OutcomeRetry }

// Deduper remembers which event ids a consumer already applied.
type Deduper interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type Recorder interface {
	Observe(consumer, outcome string, elapsed time.Duration)
}

type subscription interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type LoopParams struct {
	Name         string
	Subscription *pubsub.Subscriber
	Handler      Handler
	Dedupe       Deduper
	Logger       *logger.Logger
	Metrics      Recorder
	// Accepts filters event types before the dedupe store is touched. Nil accepts all.
	Accepts func(enums.OutboxEventType) bool
}

type Loop struct {
	name    string
	sub     subscription
	handler Handler
	dedupe  Deduper
	logg    *logger.Logger
	metrics Recorder
	accepts func(enums.OutboxEventType) bool
	now     func() time.Time
}

func NewLoop(p LoopParams) (*Loop, error) {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return nil, errors.New("consumer name required")
	case p.Subscription == nil:
		return nil, fmt.Errorf("%s: subscription required", p.Name)
	case p.Handler == nil:
		return nil, fmt.Errorf("%s: handler required", p.Name)
	case p.Dedupe == nil:
		return nil, fmt.Errorf("%s: idempotency scope required", p.Name)
	case p.Logger == nil:
		return nil, fmt.Errorf("%s: logger required", p.Name)
	}
	return &Loop{
		name:    p.Name,
		sub:     p.Subscription,
		handler: p.Handler,
		dedupe:  p.Dedupe,
		logg:    p.Logger,
		metrics: p.Metrics,
		accepts: p.Accepts,
		now:     time.Now,
	}, nil
}

func (l *Loop) Name() string { return l.name }

// Run receives until ctx is canceled or the subscription fails.
func (l *Loop) Run(ctx context.Context) error {
	return l.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if l.process(ctx, msg).ack() {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (l *Loop) process(ctx context.Context, raw *pubsub.Message) Outcome {
	started := l.now()
	outcome := l.settle(ctx, raw)
	if l.metrics != nil {
		l.metrics.Observe(l.name, string(outcome), l.now().Sub(started))
	}
	return outcome
}

func (l *Loop) settle(ctx context.Context, raw *pubsub.Message) Outcome {
	logCtx := l.logg.WithFields(ctx, map[string]any{
		"consumer":   l.name,
		"message_id": raw.ID,
		"event_type": raw.Attributes["event_type"],
	})

	if l.accepts != nil && !l.accepts(enums.OutboxEventType(raw.Attributes["event_type"])) {
		return OutcomeSkipped
	}

	msg, err := Decode(raw)
	if err != nil {
		l.logg.Error(logCtx, "undecodable event dropped", err)
		return OutcomeDropped
	}
	logCtx = l.logg.WithFields(logCtx, map[string]any{
		"event_id":     msg.EventID.String(),
		"aggregate_id": msg.AggregateID,
	})

	already, err := l.dedupe.CheckAndMark(logCtx, msg.EventID.String())
	if err != nil {
		l.logg.Error(logCtx, "idempotency check failed", err)
		return OutcomeRetry
	}
	if already {
		l.logg.Info(logCtx, "event already processed")
		return OutcomeDuplicate
	}

	err = l.handler.Handle(logCtx, msg)
	switch {
	case err == nil:
		l.logg.Info(logCtx, "event handled")
		return OutcomeHandled
	case errors.Is(err, ErrSkip):
		l.logg.Debug(logCtx, "event skipped")
		return OutcomeSkipped
	case isPermanent(err):
		l.logg.Warn(l.logg.WithField(logCtx, "error", err.Error()), "event dropped")
		return OutcomeDropped
	default:
		l.logg.Error(logCtx, "event handling failed", err)
		if delErr := l.dedupe.Delete(logCtx, msg.EventID.String()); delErr != nil {
			l.logg.Error(logCtx, "failed to release idempotency mark", delErr)
		}
		return OutcomeRetry
	}
}
