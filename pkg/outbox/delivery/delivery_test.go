package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
)

type memoryDedupe struct {
	seen    map[string]bool
	deleted []string
	err     error
}

func newMemoryDedupe() *memoryDedupe { return &memoryDedupe{seen: map[string]bool{}} }

func (m *memoryDedupe) CheckAndMark(_ context.Context, id string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[id] {
		return true, nil
	}
	m.seen[id] = true
	return false, nil
}

func (m *memoryDedupe) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.seen, id)
	return nil
}

type recorded struct {
	consumer, outcome string
}

type fakeRecorder struct{ calls []recorded }

func (f *fakeRecorder) Observe(consumer, outcome string, _ time.Duration) {
	f.calls = append(f.calls, recorded{consumer, outcome})
}

func newMessage(t *testing.T, eventID string, attrs map[string]string, data any) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC),
		Data:       raw,
	})
	require.NoError(t, err)
	return &pubsub.Message{ID: "m-1", Data: body, Attributes: attrs}
}

func newLoop(handler Handler, dedupe *memoryDedupe, rec Recorder) *Loop {
	return &Loop{
		name:    "test",
		handler: handler,
		dedupe:  dedupe,
		logg:    logger.Nop(),
		metrics: rec,
		now:     time.Now,
	}
}

func TestDecodeReadsAttributesAndEnvelope(t *testing.T) {
	id := uuid.New()
	msg := newMessage(t, id.String(), map[string]string{
		"event_type":     "invoice_created",
		"aggregate_type": "invoice",
		"aggregate_id":   " inv-7 ",
	}, map[string]any{"invoice_number": "INV-202604-000007"})

	got, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, id, got.EventID)
	assert.Equal(t, enums.EventInvoiceCreated, got.EventType)
	assert.Equal(t, enums.AggregateInvoice, got.AggregateType)
	assert.Equal(t, "inv-7", got.AggregateID)
	assert.Equal(t, time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC), got.OccurredAt)

	var data struct {
		InvoiceNumber string `json:"invoice_number"`
	}
	require.NoError(t, got.Bind(&data))
	assert.Equal(t, "INV-202604-000007", data.InvoiceNumber)
}

func TestDecodeRejectsBadMessages(t *testing.T) {
	cases := map[string]*pubsub.Message{
		"unknown type":    newMessage(t, uuid.NewString(), map[string]string{"event_type": "order_created"}, nil),
		"bad event id":    newMessage(t, "evt-1", map[string]string{"event_type": "order_placed"}, nil),
		"bad aggregate":   newMessage(t, uuid.NewString(), map[string]string{"event_type": "order_placed", "aggregate_type": "cart"}, nil),
		"not an envelope": {Data: []byte("{"), Attributes: map[string]string{"event_type": "order_placed"}},
	}
	for name, msg := range cases {
		_, err := Decode(msg)
		assert.Error(t, err, name)
	}
}

func TestLoopHandlesOncePerEvent(t *testing.T) {
	calls := 0
	dedupe, rec := newMemoryDedupe(), &fakeRecorder{}
	loop := newLoop(HandlerFunc(func(context.Context, *Message) error { calls++; return nil }), dedupe, rec)
	msg := newMessage(t, uuid.NewString(), map[string]string{"event_type": "order_placed"}, nil)

	assert.Equal(t, OutcomeHandled, loop.process(context.Background(), msg))
	assert.Equal(t, OutcomeDuplicate, loop.process(context.Background(), msg))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []recorded{{"test", "handled"}, {"test", "duplicate"}}, rec.calls)
}

func TestLoopTransientFailureReleasesMark(t *testing.T) {
	dedupe := newMemoryDedupe()
	loop := newLoop(HandlerFunc(func(context.Context, *Message) error { return errors.New("db down") }), dedupe, nil)
	id := uuid.NewString()

	outcome := loop.process(context.Background(), newMessage(t, id, map[string]string{"event_type": "order_placed"}, nil))
	assert.Equal(t, OutcomeRetry, outcome)
	assert.False(t, outcome.ack())
	assert.Equal(t, []string{id}, dedupe.deleted)
	assert.Empty(t, dedupe.seen)
}

func TestLoopPermanentAndSkipAreAcked(t *testing.T) {
	dedupe := newMemoryDedupe()
	var verdict error
	loop := newLoop(HandlerFunc(func(context.Context, *Message) error { return verdict }), dedupe, nil)

	verdict = Permanent(errors.New("subscription missing"))
	assert.Equal(t, OutcomeDropped, loop.process(context.Background(), newMessage(t, uuid.NewString(), map[string]string{"event_type": "order_placed"}, nil)))

	verdict = ErrSkip
	assert.Equal(t, OutcomeSkipped, loop.process(context.Background(), newMessage(t, uuid.NewString(), map[string]string{"event_type": "order_placed"}, nil)))
	assert.Empty(t, dedupe.deleted)
}

func TestLoopRetriesWhenDedupeStoreFails(t *testing.T) {
	dedupe := newMemoryDedupe()
	dedupe.err = errors.New("redis down")
	called := false
	loop := newLoop(HandlerFunc(func(context.Context, *Message) error { called = true; return nil }), dedupe, nil)

	assert.Equal(t, OutcomeRetry, loop.process(context.Background(), newMessage(t, uuid.NewString(), map[string]string{"event_type": "order_placed"}, nil)))
	assert.False(t, called)
}

func TestLoopAcceptsFilterSkipsBeforeDedupe(t *testing.T) {
	dedupe := newMemoryDedupe()
	loop := newLoop(HandlerFunc(func(context.Context, *Message) error { return nil }), dedupe, nil)
	loop.accepts = func(et enums.OutboxEventType) bool { return et == enums.EventOrderPlaced }

	assert.Equal(t, OutcomeSkipped, loop.process(context.Background(), newMessage(t, uuid.NewString(), map[string]string{"event_type": "invoice_created"}, nil)))
	assert.Empty(t, dedupe.seen)
}

func TestLoopDropsUndecodableMessages(t *testing.T) {
	dedupe := newMemoryDedupe()
	loop := newLoop(HandlerFunc(func(context.Context, *Message) error { return nil }), dedupe, nil)

	assert.Equal(t, OutcomeDropped, loop.process(context.Background(), &pubsub.Message{Data: []byte("nope"), Attributes: map[string]string{"event_type": "order_placed"}}))
	assert.Empty(t, dedupe.seen)
}

func TestNewLoopValidates(t *testing.T) {
	_, err := NewLoop(LoopParams{Name: "x"})
	assert.Error(t, err)
	_, err = NewLoop(LoopParams{})
	assert.Error(t, err)
}
