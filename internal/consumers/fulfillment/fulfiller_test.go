package fulfillment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/msisdn"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
)

func seedOrder(t *testing.T, conn *gorm.DB, now time.Time) payloads.OrderPlacedEvent {
	t.Helper()
	customerID := uuid.New()
	expires := now.Add(15 * time.Minute)
	number := &models.MsisdnInventory{PhoneNumber: "+919811100001", Status: enums.MsisdnStatusReserved, Region: "north", ReservedBy: &customerID, ReservationExpiresAt: &expires}
	require.NoError(t, conn.Create(number).Error)
	sub := &models.Subscription{CustomerID: customerID, PlanID: uuid.New(), MsisdnID: number.ID, PhoneNumber: number.PhoneNumber,
		Status: enums.SubscriptionStatusPending, StartDate: now, EndDate: now.AddDate(0, 0, 30)}
	require.NoError(t, conn.Create(sub).Error)
	return payloads.OrderPlacedEvent{SubscriptionID: sub.ID, CustomerID: customerID, MsisdnID: number.ID, PhoneNumber: number.PhoneNumber, PlanID: sub.PlanID}
}

func newFulfiller(t *testing.T) (*Fulfiller, *gorm.DB, time.Time) {
	t.Helper()
	client, conn := dbtest.Client(t, &models.MsisdnInventory{}, &models.Subscription{})
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	f, err := NewFulfiller(client, subscriptions.NewRepository(conn), msisdn.NewRepository(conn), func() time.Time { return now })
	require.NoError(t, err)
	return f, conn, now
}

func TestFulfillActivatesNumberAndLine(t *testing.T) {
	f, conn, now := newFulfiller(t)
	event := seedOrder(t, conn, now)

	require.NoError(t, f.Fulfill(context.Background(), event))

	var number models.MsisdnInventory
	require.NoError(t, conn.First(&number, "id = ?", event.MsisdnID).Error)
	assert.Equal(t, enums.MsisdnStatusActive, number.Status)
	require.NotNil(t, number.CustomerID)
	assert.Equal(t, event.CustomerID, *number.CustomerID)
	assert.Nil(t, number.ReservedBy)

	var sub models.Subscription
	require.NoError(t, conn.First(&sub, "id = ?", event.SubscriptionID).Error)
	assert.Equal(t, enums.SubscriptionStatusActive, sub.Status)

	require.NoError(t, f.Fulfill(context.Background(), event), "replay is a no-op")
}

func TestFulfillRejectsCancelledOrders(t *testing.T) {
	f, conn, now := newFulfiller(t)
	event := seedOrder(t, conn, now)
	require.NoError(t, conn.Model(&models.Subscription{}).Where("id = ?", event.SubscriptionID).Update("status", enums.SubscriptionStatusCancelled).Error)

	err := f.Fulfill(context.Background(), event)
	assert.True(t, errors.Is(err, ErrUnfulfillable))

	missing := event
	missing.SubscriptionID = uuid.New()
	assert.True(t, errors.Is(f.Fulfill(context.Background(), missing), ErrUnfulfillable))
}

func TestFulfillRollsBackWhenNumberLost(t *testing.T) {
	f, conn, now := newFulfiller(t)
	event := seedOrder(t, conn, now)
	require.NoError(t, conn.Model(&models.MsisdnInventory{}).Where("id = ?", event.MsisdnID).
		Updates(map[string]any{"status": enums.MsisdnStatusAvailable, "reserved_by": nil}).Error)

	err := f.Fulfill(context.Background(), event)
	assert.True(t, errors.Is(err, ErrUnfulfillable))

	var sub models.Subscription
	require.NoError(t, conn.First(&sub, "id = ?", event.SubscriptionID).Error)
	assert.Equal(t, enums.SubscriptionStatusPending, sub.Status)
}
