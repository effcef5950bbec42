package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/customers"
	"github.com/angelmondragon/telcobill-backend/internal/msisdn"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/internal/payments/paymentstest"
	"github.com/angelmondragon/telcobill-backend/internal/plans"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

type fixture struct {
	svc   Service
	conn  *gorm.DB
	clock time.Time
	plan  *models.PlanConfiguration
}

func newFixture(t *testing.T, maxLines int) *fixture {
	t.Helper()
	tables := append(paymentstest.Models(), &models.PlanConfiguration{}, &models.MsisdnInventory{}, &models.Subscription{})
	client, conn := dbtest.Client(t, tables...)
	f := &fixture{conn: conn, clock: time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }
	stack := paymentstest.New(t, client, conn, nil, now)

	numberRepo := msisdn.NewRepository(conn)
	numbers, err := msisdn.NewService(msisdn.ServiceParams{Repo: numberRepo, Tx: client, Outbox: stack.Emitter, Logger: logger.Nop(), ReservationTTL: 15 * time.Minute, Now: now})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:          NewRepository(conn),
		Customers:     customers.NewRepository(conn),
		Plans:         plans.NewRepository(conn),
		Msisdns:       numberRepo,
		Claimer:       numbers,
		Subscriptions: subscriptions.NewRepository(conn),
		Payments:      stack.Payments,
		Tx:            client,
		Outbox:        stack.Emitter,
		MaxLines:      maxLines,
		Now:           now,
	})
	require.NoError(t, err)
	f.svc = svc

	f.plan = &models.PlanConfiguration{Code: "basic-30", Name: "Basic 30", PriceMinor: 30000, DataQuotaMB: 2048, VoiceQuotaMinutes: 300, SMSQuota: 100, ValidityDays: 30, Active: true}
	require.NoError(t, conn.Create(f.plan).Error)
	return f
}

func (f *fixture) number(t *testing.T, phone string, tier enums.MsisdnTier) *models.MsisdnInventory {
	t.Helper()
	row := &models.MsisdnInventory{PhoneNumber: phone, Status: enums.MsisdnStatusAvailable, Tier: tier, Region: "north"}
	require.NoError(t, f.conn.Create(row).Error)
	return row
}

func TestPlaceSimOrderBillsAndEmits(t *testing.T) {
	f := newFixture(t, 0)
	customer := paymentstest.SeedCustomer(t, f.conn, "pm_card_visa")
	number := f.number(t, "+919811100001", enums.MsisdnTierStandard)

	result, err := f.svc.PlaceSimOrder(context.Background(), customer.ID, SimOrderInput{MsisdnID: number.ID, PlanID: f.plan.ID, AutoRenew: true})
	require.NoError(t, err)

	assert.Equal(t, enums.SubscriptionStatusPending, result.Subscription.Status)
	assert.Equal(t, number.PhoneNumber, result.Subscription.PhoneNumber)
	assert.Equal(t, int64(34900), result.Invoice.SubtotalMinor)
	assert.Equal(t, int64(41182), result.Invoice.TotalMinor)
	assert.Equal(t, enums.InvoiceStatusPaid, result.Invoice.Status)
	require.NotNil(t, result.Payment)
	assert.Equal(t, enums.PaymentAttemptSucceeded, result.Payment.Status)

	var claimed models.MsisdnInventory
	require.NoError(t, f.conn.First(&claimed, "id = ?", number.ID).Error)
	assert.Equal(t, enums.MsisdnStatusReserved, claimed.Status)
	require.NotNil(t, claimed.ReservedBy)
	assert.Equal(t, customer.ID, *claimed.ReservedBy)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", enums.EventOrderPlaced).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, result.Subscription.ID, events[0].AggregateID)
}

func TestPlaceSimOrderDeclinedChargeKeepsOrder(t *testing.T) {
	f := newFixture(t, 0)
	customer := paymentstest.SeedCustomer(t, f.conn, payments.DeclineTestPaymentMethod)
	number := f.number(t, "+919811100002", enums.MsisdnTierGold)

	result, err := f.svc.PlaceSimOrder(context.Background(), customer.ID, SimOrderInput{MsisdnID: number.ID, PlanID: f.plan.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(30000+4900+49900), result.Invoice.SubtotalMinor)
	assert.Equal(t, enums.InvoiceStatusPending, result.Invoice.Status)
	require.NotNil(t, result.Payment)
	assert.Equal(t, enums.PaymentAttemptFailed, result.Payment.Status)
	assert.NotNil(t, result.Payment.NextRetryAt)
}

func TestPlaceSimOrderRejectsTakenNumber(t *testing.T) {
	f := newFixture(t, 0)
	first := paymentstest.SeedCustomer(t, f.conn, "pm_card_visa")
	second := paymentstest.SeedCustomer(t, f.conn, "pm_card_visa")
	number := f.number(t, "+919811100003", enums.MsisdnTierStandard)

	_, err := f.svc.PlaceSimOrder(context.Background(), first.ID, SimOrderInput{MsisdnID: number.ID, PlanID: f.plan.ID})
	require.NoError(t, err)

	_, err = f.svc.PlaceSimOrder(context.Background(), second.ID, SimOrderInput{MsisdnID: number.ID, PlanID: f.plan.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)

	var subs int64
	require.NoError(t, f.conn.Model(&models.Subscription{}).Where("customer_id = ?", second.ID).Count(&subs).Error)
	assert.Zero(t, subs, "failed orders leave nothing behind")
}

func TestPlaceSimOrderEnforcesEligibility(t *testing.T) {
	f := newFixture(t, 1)
	customer := paymentstest.SeedCustomer(t, f.conn, "pm_card_visa")

	_, err := f.svc.PlaceSimOrder(context.Background(), customer.ID, SimOrderInput{MsisdnID: f.number(t, "+919811100004", enums.MsisdnTierStandard).ID, PlanID: f.plan.ID})
	require.NoError(t, err)

	_, err = f.svc.PlaceSimOrder(context.Background(), customer.ID, SimOrderInput{MsisdnID: f.number(t, "+919811100005", enums.MsisdnTierStandard).ID, PlanID: f.plan.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "line limit reached")

	unverified := paymentstest.SeedCustomer(t, f.conn, "pm_card_visa")
	require.NoError(t, f.conn.Model(&models.CustomerProfile{}).Where("id = ?", unverified.ID).Update("kyc_status", enums.KYCStatusPending).Error)
	_, err = f.svc.PlaceSimOrder(context.Background(), unverified.ID, SimOrderInput{MsisdnID: f.number(t, "+919811100006", enums.MsisdnTierStandard).ID, PlanID: f.plan.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.PlaceSimOrder(context.Background(), uuid.New(), SimOrderInput{MsisdnID: uuid.New(), PlanID: f.plan.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestQuote(t *testing.T) {
	f := newFixture(t, 0)
	number := f.number(t, "+919999999999", enums.MsisdnTierPlatinum)

	quote, err := f.svc.Quote(context.Background(), SimOrderInput{MsisdnID: number.ID, PlanID: f.plan.ID})
	require.NoError(t, err)
	assert.Len(t, quote.LineItems, 3)
	assert.Equal(t, int64(30000+4900+99900), quote.SubtotalMinor)
	assert.Equal(t, quote.SubtotalMinor+quote.TaxMinor, quote.TotalMinor)
}

func TestPlacedOrderKeepsNumberPastReservationTTL(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	first := paymentstest.SeedCustomer(t, f.conn, "pm_card_visa")
	second := paymentstest.SeedCustomer(t, f.conn, "pm_card_visa")
	number := f.number(t, "+919811100007", enums.MsisdnTierStandard)

	_, err := f.svc.PlaceSimOrder(ctx, first.ID, SimOrderInput{MsisdnID: number.ID, PlanID: f.plan.ID})
	require.NoError(t, err)

	var held models.MsisdnInventory
	require.NoError(t, f.conn.First(&held, "id = ?", number.ID).Error)
	assert.Nil(t, held.ReservationExpiresAt, "an ordered number has no reservation expiry")

	f.clock = f.clock.Add(16 * time.Minute)

	_, err = f.svc.PlaceSimOrder(ctx, second.ID, SimOrderInput{MsisdnID: number.ID, PlanID: f.plan.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = f.svc.PlaceSimOrder(ctx, first.ID, SimOrderInput{MsisdnID: number.ID, PlanID: f.plan.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "the same customer cannot order the number twice")

	var subs int64
	require.NoError(t, f.conn.Model(&models.Subscription{}).Where("msisdn_id = ?", number.ID).Count(&subs).Error)
	assert.EqualValues(t, 1, subs)
}
