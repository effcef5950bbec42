package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
)

func seedDeadLetter(t *testing.T, conn *gorm.DB, reason enums.OutboxDLQErrorReason, keepOutboxRow bool, failedAt time.Time) models.OutboxEvent {
	t.Helper()
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventInvoiceCreated,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"event_id":"e1","data":{}}`),
		AttemptCount:  10,
	}
	if keepOutboxRow {
		require.NoError(t, conn.Create(&event).Error)
	}
	msg := "publish: deadline exceeded"
	require.NoError(t, NewDLQRepository(conn).InsertTx(conn, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      failedAt,
	}))
	return event
}

func newDeadLetterService(t *testing.T) (*DeadLetterService, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.Client(t, &models.OutboxEvent{}, &models.OutboxDLQ{})
	svc, err := NewDeadLetterService(client, NewRepository(conn), NewDLQRepository(conn), logger.Nop())
	require.NoError(t, err)
	return svc, conn
}

func TestDeadLetterListFiltersByReason(t *testing.T) {
	svc, conn := newDeadLetterService(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedDeadLetter(t, conn, enums.OutboxDLQReasonMaxAttempts, true, base)
	newest := seedDeadLetter(t, conn, enums.OutboxDLQReasonMaxAttempts, true, base.Add(time.Hour))
	seedDeadLetter(t, conn, enums.OutboxDLQReasonNonRetryable, true, base.Add(2*time.Hour))

	reason := enums.OutboxDLQReasonMaxAttempts
	page, err := svc.List(context.Background(), DeadLetterFilter{Reason: &reason}, pagination.Params{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, newest.ID, page.Items[0].EventID)
	assert.Equal(t, "publish: deadline exceeded", page.Items[0].Error)
}

func TestDeadLetterReplayResetsOutboxRow(t *testing.T) {
	svc, conn := newDeadLetterService(t)
	event := seedDeadLetter(t, conn, enums.OutboxDLQReasonMaxAttempts, true, time.Now().UTC())

	replayed, err := svc.Replay(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, replayed.Reason)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "id = ?", event.ID).Error)
	assert.Zero(t, row.AttemptCount)
	assert.Nil(t, row.LastError)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxDLQ{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestDeadLetterReplayRecreatesMissingOutboxRow(t *testing.T) {
	svc, conn := newDeadLetterService(t)
	event := seedDeadLetter(t, conn, enums.OutboxDLQReasonNonRetryable, false, time.Now().UTC())

	_, err := svc.Replay(context.Background(), event.ID)
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "id = ?", event.ID).Error)
	assert.Equal(t, event.AggregateID, row.AggregateID)
	assert.JSONEq(t, string(event.Payload), string(row.Payload))
	assert.Nil(t, row.PublishedAt)
}

func TestDeadLetterReplayUnknownEvent(t *testing.T) {
	svc, _ := newDeadLetterService(t)

	_, err := svc.Replay(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
