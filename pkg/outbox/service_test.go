package outbox

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
)

func TestEmitWritesEnvelope(t *testing.T) {
	client, conn := dbtest.Client(t, &models.OutboxEvent{})
	repo := NewRepository(conn)
	svc := NewService(repo, logger.Nop())
	ctx := context.Background()

	invoiceID := uuid.New()
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventInvoiceCreated,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoiceID,
			Data:          payloads.InvoiceCreatedEvent{InvoiceID: invoiceID, TotalMinor: 41182},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)

	var payload payloads.InvoiceCreatedEvent
	envelope, err := DecodeEnvelope(rows[0].Payload, &payload)
	require.NoError(t, err)
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, rows[0].ID.String(), envelope.EventID)
	assert.Equal(t, int64(41182), payload.TotalMinor)
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	client, conn := dbtest.Client(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          map[string]string{"k": "v"},
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitIfNotExists(t *testing.T) {
	client, conn := dbtest.Client(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()
	attemptID := uuid.New()

	for i := 0; i < 2; i++ {
		require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(ctx, tx, DomainEvent{
				EventType:     enums.EventPaymentSettled,
				AggregateType: enums.AggregatePaymentAttempt,
				AggregateID:   attemptID,
				Data:          payloads.PaymentSettledEvent{AttemptID: attemptID},
			})
		}))
	}

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(nil, nil)
	assert.ErrorIs(t, svc.Emit(context.Background(), nil, DomainEvent{}), errTxRequired)
}

func TestEmitRejectsIncompleteEvents(t *testing.T) {
	client, conn := dbtest.Client(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()

	cases := map[string]DomainEvent{
		"unknown type":      {EventType: "sim_swapped", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()},
		"unknown aggregate": {EventType: enums.EventOrderPlaced, AggregateType: "cart", AggregateID: uuid.New()},
		"missing aggregate": {EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder},
	}
	for name, event := range cases {
		err := client.WithTx(ctx, func(tx *gorm.DB) error { return svc.Emit(ctx, tx, event) })
		assert.Error(t, err, name)
	}
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	client, conn := dbtest.Client(t, &models.OutboxEvent{})
	repo := NewRepository(conn)
	ctx := context.Background()

	first := models.OutboxEvent{EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventPlanChanged, AggregateType: enums.AggregateSubscription, AggregateID: uuid.New(), Payload: []byte(`{}`)}
	require.NoError(t, conn.Create(&first).Error)
	require.NoError(t, conn.Create(&second).Error)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		if err := repo.MarkPublishedTx(tx, first.ID); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, second.ID, assert.AnError, 3)
	}))

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		assert.Empty(t, rows)
		return nil
	}))
}
