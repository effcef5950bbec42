package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/telcobill-backend/internal/analytics/types"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

var (
	ErrUnsupportedEventType = errors.New("unsupported analytics event type")
	// ErrMalformedPayload means the event data can never be decoded into its row.
	ErrMalformedPayload = errors.New("malformed analytics payload")
)

type Writer interface {
	Insert(ctx context.Context, row types.BillingEventRow) error
}

// Handler receives an envelope and its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type route struct {
	decodeInto func() any
	handler    Handler
}

// Router decodes each envelope into the payload type registered for its
// event and hands it to that event's handler.
type Router struct {
	routes map[enums.OutboxEventType]route
}

// NewRouter registers the BigQuery projections. overrides swap the handler
// of an already routed event; unknown events in overrides are ignored.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	r := &Router{routes: make(map[enums.OutboxEventType]route)}
	for name, rt := range defaultRoutes(writer, logg) {
		eventType, err := enums.ParseOutboxEventType(name)
		if err != nil {
			return nil, fmt.Errorf("analytics route %q: %w", name, err)
		}
		if custom := overrides[eventType]; custom != nil {
			rt.handler = custom
		}
		r.routes[eventType] = rt
	}
	return r, nil
}

// Supports reports whether an event type is streamed to BigQuery.
func (r *Router) Supports(eventType enums.OutboxEventType) bool {
	_, ok := r.routes[eventType]
	return ok
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	rt, ok := r.routes[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("%w: empty payload for %s", ErrMalformedPayload, envelope.EventType)
	}
	payload := rt.decodeInto()
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedPayload, envelope.EventType, err)
	}
	return rt.handler.Handle(ctx, envelope, payload)
}
