package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/telcobill-backend/internal/analytics/router"
	"github.com/angelmondragon/telcobill-backend/internal/analytics/types"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/delivery"
)

type recordingHandler struct {
	got []types.Envelope
	err error
}

func (h *recordingHandler) Handle(_ context.Context, envelope types.Envelope) error {
	h.got = append(h.got, envelope)
	return h.err
}

func invoiceDelivery() *delivery.Message {
	return &delivery.Message{
		EventID:       uuid.New(),
		EventType:     enums.EventInvoiceCreated,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   "inv-1",
		OccurredAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Data:          json.RawMessage(`{"invoice_id":"inv-1"}`),
	}
}

func TestAdapterForwardsEnvelope(t *testing.T) {
	next := &recordingHandler{}
	a, err := NewAdapter(next)
	require.NoError(t, err)
	msg := invoiceDelivery()

	require.NoError(t, a.Handle(context.Background(), msg))
	require.Len(t, next.got, 1)
	env := next.got[0]
	assert.Equal(t, msg.EventID.String(), env.EventID)
	assert.Equal(t, enums.EventInvoiceCreated, env.EventType)
	assert.Equal(t, "inv-1", env.AggregateID)
	assert.Equal(t, msg.OccurredAt, env.OccurredAt)
	assert.JSONEq(t, `{"invoice_id":"inv-1"}`, string(env.Payload))
}

func TestAdapterMapsRouterErrors(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		skip      bool
		retryable bool
	}{
		{name: "unsupported", err: fmt.Errorf("%w: usage_recorded", router.ErrUnsupportedEventType), skip: true},
		{name: "malformed", err: fmt.Errorf("%w: decode", router.ErrMalformedPayload)},
		{name: "bigquery", err: errors.New("insert rows: 503"), retryable: true},
	}
	for _, tc := range cases {
		a, _ := NewAdapter(&recordingHandler{err: tc.err})
		got := a.Handle(context.Background(), invoiceDelivery())
		require.Error(t, got, tc.name)
		assert.Equal(t, tc.skip, errors.Is(got, delivery.ErrSkip), tc.name)
		if tc.retryable {
			assert.Equal(t, tc.err, got, tc.name)
		}
	}
}

func TestAdapterDropsEventsWithoutAggregate(t *testing.T) {
	next := &recordingHandler{}
	a, _ := NewAdapter(next)
	msg := invoiceDelivery()
	msg.AggregateID = ""

	err := a.Handle(context.Background(), msg)
	require.Error(t, err)
	assert.Empty(t, next.got)
}
