package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/telcobill-backend/internal/analytics/types"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
)

type rowSink struct {
	rows []types.BillingEventRow
	err  error
}

func (s *rowSink) Insert(_ context.Context, row types.BillingEventRow) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, row)
	return nil
}

type recordingHandler struct {
	payloads []any
}

func (h *recordingHandler) Handle(_ context.Context, _ types.Envelope, payload any) error {
	h.payloads = append(h.payloads, payload)
	return nil
}

var occurred = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func envelope(t *testing.T, eventType enums.OutboxEventType, payload any) types.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return types.Envelope{EventID: uuid.NewString(), EventType: eventType, OccurredAt: occurred, Payload: data}
}

// single routes one envelope and returns the only row written.
func single(t *testing.T, eventType enums.OutboxEventType, payload any) types.BillingEventRow {
	t.Helper()
	sink := &rowSink{}
	r, err := NewRouter(sink, logger.Nop(), nil)
	require.NoError(t, err)
	env := envelope(t, eventType, payload)
	require.NoError(t, r.Handle(context.Background(), env))
	require.Len(t, sink.rows, 1)
	assert.Equal(t, env.EventID, sink.rows[0].EventID)
	assert.Equal(t, string(eventType), sink.rows[0].EventType)
	assert.True(t, sink.rows[0].Payload.Valid)
	return sink.rows[0]
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(nil, logger.Nop(), nil)
	assert.EqualError(t, err, "writer is required")
	_, err = NewRouter(&rowSink{}, nil, nil)
	assert.EqualError(t, err, "logger is required")
}

func TestSupportsBillingEventsOnly(t *testing.T) {
	r, err := NewRouter(&rowSink{}, logger.Nop(), nil)
	require.NoError(t, err)
	for _, eventType := range []enums.OutboxEventType{
		enums.EventOrderPlaced, enums.EventInvoiceCreated, enums.EventPaymentSettled, enums.EventPaymentFailed,
		enums.EventPlanChanged, enums.EventContractCreated, enums.EventSubscriptionSuspended,
		enums.EventSubscriptionReactivated, enums.EventPortingCompleted,
	} {
		assert.True(t, r.Supports(eventType), eventType)
	}
	assert.False(t, r.Supports(enums.EventReservationReleased))
}

func TestInvoiceCreatedCarriesTotalsAndReason(t *testing.T) {
	event := payloads.InvoiceCreatedEvent{
		InvoiceID:     uuid.New(),
		InvoiceNumber: "INV-202603-000001",
		CustomerID:    uuid.New(),
		SubtotalMinor: 34900,
		TaxMinor:      6282,
		TotalMinor:    41182,
		Reason:        "sim_order",
	}
	row := single(t, enums.EventInvoiceCreated, event)

	assert.Equal(t, occurred, row.OccurredAt)
	assert.Equal(t, event.InvoiceID.String(), *row.InvoiceID)
	assert.Equal(t, event.CustomerID.String(), *row.CustomerID)
	assert.EqualValues(t, 41182, *row.AmountMinor)
	assert.EqualValues(t, 6282, *row.TaxMinor)
	assert.Equal(t, "sim_order", *row.Reason)
	assert.Nil(t, row.SubscriptionID)
	assert.Nil(t, row.PlanID)
}

func TestPaymentSettledUsesSettlementTime(t *testing.T) {
	settled := time.Date(2026, 3, 2, 2, 0, 5, 0, time.UTC)
	row := single(t, enums.EventPaymentSettled, payloads.PaymentSettledEvent{
		AttemptID: uuid.New(), InvoiceID: uuid.New(), CustomerID: uuid.New(), AmountMinor: 29900, SettledAt: settled,
	})
	assert.Equal(t, settled, row.OccurredAt)
	assert.EqualValues(t, 29900, *row.AmountMinor)

	row = single(t, enums.EventPaymentSettled, payloads.PaymentSettledEvent{InvoiceID: uuid.New(), AmountMinor: 100})
	assert.Equal(t, occurred, row.OccurredAt, "envelope time when settled_at is missing")
}

func TestPaymentFailedKeepsDeclineReason(t *testing.T) {
	row := single(t, enums.EventPaymentFailed, payloads.PaymentFailedEvent{
		AttemptID: uuid.New(), InvoiceID: uuid.New(), CustomerID: uuid.New(), AmountMinor: 29900, Reason: "insufficient funds",
	})
	assert.Equal(t, "insufficient funds", *row.Reason)

	row = single(t, enums.EventPaymentFailed, payloads.PaymentFailedEvent{InvoiceID: uuid.New(), Reason: "  "})
	assert.Nil(t, row.Reason)
}

func TestPlanChangedCreditIsNegative(t *testing.T) {
	event := payloads.PlanChangedEvent{SubscriptionID: uuid.New(), CustomerID: uuid.New(), NewPlanID: uuid.New(), NetMinor: -4500}
	row := single(t, enums.EventPlanChanged, event)

	assert.EqualValues(t, -4500, *row.AmountMinor)
	assert.Equal(t, event.NewPlanID.String(), *row.PlanID)
	assert.Equal(t, event.SubscriptionID.String(), *row.SubscriptionID)
	assert.Nil(t, row.InvoiceID)
}

func TestContractCreatedRecordsFinancedAmount(t *testing.T) {
	row := single(t, enums.EventContractCreated, payloads.ContractCreatedEvent{
		ContractID: uuid.New(), CustomerID: uuid.New(), DeviceName: "Pixel 10",
		DevicePriceMinor: 99900, DownPaymentMinor: 19900, InstallmentCount: 24,
	})
	assert.EqualValues(t, 80000, *row.AmountMinor)
	assert.Equal(t, "Pixel 10", *row.Reason)
}

func TestSubscriptionStatusRows(t *testing.T) {
	event := payloads.SubscriptionStatusEvent{
		SubscriptionID: uuid.New(), CustomerID: uuid.New(), Status: enums.SubscriptionStatusSuspended, Reason: "non_payment",
	}
	row := single(t, enums.EventSubscriptionSuspended, event)
	assert.Equal(t, event.SubscriptionID.String(), *row.SubscriptionID)
	assert.Equal(t, "non_payment", *row.Reason)
	assert.Nil(t, row.AmountMinor)

	event.Reason = ""
	row = single(t, enums.EventSubscriptionReactivated, event)
	assert.Nil(t, row.Reason)
}

func TestPortingCompletedRecordsDirection(t *testing.T) {
	row := single(t, enums.EventPortingCompleted, payloads.PortingCompletedEvent{
		PortingRequestID: uuid.New(), CustomerID: uuid.New(), Direction: enums.PortIn,
	})
	assert.Equal(t, "port_in", *row.Reason)
	assert.Nil(t, row.SubscriptionID)
}

func TestWriterErrorIsReturned(t *testing.T) {
	failure := errors.New("bigquery unavailable")
	r, err := NewRouter(&rowSink{err: failure}, logger.Nop(), nil)
	require.NoError(t, err)

	err = r.Handle(context.Background(), envelope(t, enums.EventOrderPlaced, payloads.OrderPlacedEvent{SubscriptionID: uuid.New()}))
	assert.ErrorIs(t, err, failure)
}

func TestUnsupportedAndMalformedEnvelopes(t *testing.T) {
	r, err := NewRouter(&rowSink{}, logger.Nop(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	err = r.Handle(ctx, types.Envelope{EventType: enums.EventReservationReleased, Payload: []byte(`{"msisdn_id":"x"}`)})
	assert.ErrorIs(t, err, ErrUnsupportedEventType)

	err = r.Handle(ctx, types.Envelope{EventType: enums.EventInvoiceCreated})
	assert.ErrorIs(t, err, ErrMalformedPayload)

	err = r.Handle(ctx, types.Envelope{EventType: enums.EventInvoiceCreated, Payload: []byte(`{"total_minor":"lots"}`)})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestOverrideReceivesDecodedPayload(t *testing.T) {
	override := &recordingHandler{}
	sink := &rowSink{}
	r, err := NewRouter(sink, logger.Nop(), map[enums.OutboxEventType]Handler{
		enums.EventOrderPlaced:         override,
		enums.EventReservationReleased: override,
	})
	require.NoError(t, err)

	require.NoError(t, r.Handle(context.Background(), envelope(t, enums.EventOrderPlaced, payloads.OrderPlacedEvent{PhoneNumber: "+15550100"})))
	require.Len(t, override.payloads, 1)
	order, ok := override.payloads[0].(*payloads.OrderPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, "+15550100", order.PhoneNumber)
	assert.Empty(t, sink.rows)
	assert.False(t, r.Supports(enums.EventReservationReleased), "overrides do not add routes")
}

func TestProjectionRejectsWrongPayloadType(t *testing.T) {
	rt := project(&rowSink{}, logger.Nop(), func(*payloads.OrderPlacedEvent, *types.BillingEventRow) map[string]any { return nil })
	err := rt.handler.Handle(context.Background(), types.Envelope{EventType: enums.EventOrderPlaced}, &payloads.InvoiceCreatedEvent{})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
