package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/customers"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/msisdn"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/internal/plans"
	"github.com/angelmondragon/telcobill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
)

type fixture struct {
	svc      Service
	conn     *gorm.DB
	clock    time.Time
	customer *models.CustomerProfile
	basic    *models.PlanConfiguration
	premium  *models.PlanConfiguration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, conn := dbtest.Client(t,
		&models.CustomerProfile{}, &models.PlanConfiguration{}, &models.MsisdnInventory{},
		&models.Subscription{}, &models.Invoice{}, &models.PaymentAttempt{}, &models.OutboxEvent{})
	f := &fixture{conn: conn, clock: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)

	repo := NewRepository(conn)
	lifecycle, err := NewLifecycle(repo, emitter, now)
	require.NoError(t, err)

	invoiceRepo := invoices.NewRepository(conn)
	customerRepo := customers.NewRepository(conn)
	invSvc, err := invoices.NewService(invoices.ServiceParams{Repo: invoiceRepo, Credits: customerRepo, Tx: client, Outbox: emitter, Now: now})
	require.NoError(t, err)

	paySvc, err := payments.NewService(payments.ServiceParams{
		Repo:          payments.NewRepository(conn),
		Invoices:      invoiceRepo,
		Issuer:        invSvc,
		Customers:     customerRepo,
		Tx:            client,
		Outbox:        emitter,
		Gateway:       payments.SandboxGateway{},
		Subscriptions: lifecycle,
		Logger:        logger.Nop(),
		MaxRetries:    3,
		RetryDelay:    24 * time.Hour,
		Now:           now,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:            repo,
		Plans:           plans.NewRepository(conn),
		Msisdns:         msisdn.NewRepository(conn),
		Customers:       customerRepo,
		Invoices:        invoiceRepo,
		Payments:        paySvc,
		Lifecycle:       lifecycle,
		Tx:              client,
		Outbox:          emitter,
		Logger:          logger.Nop(),
		CoolingDownDays: 90,
		Now:             now,
	})
	require.NoError(t, err)
	f.svc = svc

	cus, pm := "cus_42", "pm_card_visa"
	f.customer = &models.CustomerProfile{Email: "line@example.com", PasswordHash: "x", FirstName: "Ada", LastName: "Kim",
		KYCStatus: enums.KYCStatusVerified, IsActive: true, StripeCustomerID: &cus, DefaultPaymentMethodID: &pm}
	require.NoError(t, conn.Create(f.customer).Error)

	f.basic = &models.PlanConfiguration{Code: "basic-30", Name: "Basic", PlanType: enums.PlanTypePrepaid, PriceMinor: 30000,
		DataQuotaMB: 2048, VoiceQuotaMinutes: 100, SMSQuota: 50, ValidityDays: 30, Active: true}
	f.premium = &models.PlanConfiguration{Code: "premium-30", Name: "Premium", PlanType: enums.PlanTypePrepaid, PriceMinor: 60000,
		DataQuotaMB: 10240, VoiceQuotaMinutes: 1000, SMSQuota: 500, ValidityDays: 30, Active: true}
	require.NoError(t, conn.Create(f.basic).Error)
	require.NoError(t, conn.Create(f.premium).Error)
	return f
}

func (f *fixture) seedSubscription(t *testing.T, status enums.SubscriptionStatus, endIn time.Duration, autoRenew bool) *models.Subscription {
	t.Helper()
	activated := f.clock.Add(-15 * 24 * time.Hour)
	number := &models.MsisdnInventory{
		PhoneNumber: "+9198" + uuid.NewString()[:8],
		Status:      enums.MsisdnStatusActive,
		Tier:        enums.MsisdnTierStandard,
		Region:      "north",
		CustomerID:  &f.customer.ID,
		ActivatedAt: &activated,
	}
	require.NoError(t, f.conn.Create(number).Error)
	sub := &models.Subscription{
		CustomerID:          f.customer.ID,
		PlanID:              f.basic.ID,
		MsisdnID:            number.ID,
		PhoneNumber:         number.PhoneNumber,
		Status:              status,
		StartDate:           activated,
		EndDate:             f.clock.Add(endIn),
		DataBalanceMB:       100,
		VoiceBalanceMinutes: 10,
		SMSBalance:          5,
		AutoRenew:           autoRenew,
	}
	require.NoError(t, f.conn.Create(sub).Error)
	return sub
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) models.Subscription {
	t.Helper()
	var sub models.Subscription
	require.NoError(t, f.conn.First(&sub, "id = ?", id).Error)
	return sub
}

func (f *fixture) msisdnStatus(t *testing.T, id uuid.UUID) enums.MsisdnStatus {
	t.Helper()
	var m models.MsisdnInventory
	require.NoError(t, f.conn.First(&m, "id = ?", id).Error)
	return m.Status
}

func (f *fixture) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestListAndGetAttachPlans(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusActive, 15*24*time.Hour, false)

	page, err := f.svc.List(context.Background(), f.customer.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].Plan)
	assert.Equal(t, "basic-30", page.Items[0].Plan.Code)

	_, err = f.svc.Get(context.Background(), uuid.New(), sub.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestRechargeResetsPeriodAndCollects(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusActive, 2*24*time.Hour, false)

	result, err := f.svc.Recharge(context.Background(), f.customer.ID, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Invoice)
	require.NotNil(t, result.Payment)
	assert.Equal(t, int64(35400), result.Invoice.TotalMinor)
	assert.Equal(t, enums.InvoiceStatusPaid, result.Invoice.Status)
	assert.Equal(t, enums.PaymentAttemptSucceeded, result.Payment.Status)

	got := f.reload(t, sub.ID)
	assert.Equal(t, int64(2048), got.DataBalanceMB)
	assert.True(t, got.EndDate.Equal(f.clock.AddDate(0, 0, 30)))
}

func TestRechargeRevivesExpiredSubscription(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusActive, -time.Hour, false)

	report, err := f.svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, enums.MsisdnStatusCoolingDown, f.msisdnStatus(t, sub.MsisdnID))

	result, err := f.svc.Recharge(context.Background(), f.customer.ID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, result.Subscription.Status)
	assert.Equal(t, enums.MsisdnStatusActive, f.msisdnStatus(t, sub.MsisdnID))
}

func TestRechargeFailsWhenNumberWasRecycled(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusExpired, -time.Hour, false)
	require.NoError(t, f.conn.Model(&models.MsisdnInventory{}).Where("id = ?", sub.MsisdnID).
		Updates(map[string]any{"status": enums.MsisdnStatusAvailable, "customer_id": nil}).Error)

	_, err := f.svc.Recharge(context.Background(), f.customer.ID, sub.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, enums.SubscriptionStatusExpired, f.reload(t, sub.ID).Status)
}

func TestRechargeRejectsCancelled(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusCancelled, time.Hour, false)

	_, err := f.svc.Recharge(context.Background(), f.customer.ID, sub.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestTopUpAddsBalancesAndInvoicesPerComponent(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusActive, 10*24*time.Hour, false)

	result, err := f.svc.TopUp(context.Background(), f.customer.ID, sub.ID, TopUpInput{DataMB: 500, SMS: 20})
	require.NoError(t, err)
	require.NotNil(t, result.Invoice)
	require.Len(t, result.Invoice.LineItems, 2)
	assert.Equal(t, int64(500*DataRatePerMB+20*SMSRatePerMessage), result.Invoice.SubtotalMinor)

	got := f.reload(t, sub.ID)
	assert.Equal(t, int64(600), got.DataBalanceMB)
	assert.Equal(t, int64(10), got.VoiceBalanceMinutes)
	assert.Equal(t, int64(25), got.SMSBalance)
}

func TestTopUpValidation(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusActive, 10*24*time.Hour, false)
	suspended := f.seedSubscription(t, enums.SubscriptionStatusSuspended, 10*24*time.Hour, false)

	_, err := f.svc.TopUp(context.Background(), f.customer.ID, sub.ID, TopUpInput{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.TopUp(context.Background(), f.customer.ID, sub.ID, TopUpInput{DataMB: -1, SMS: 3})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.TopUp(context.Background(), f.customer.ID, suspended.ID, TopUpInput{DataMB: 10})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestChangePlanUpgradeInvoicesNet(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusActive, 15*24*time.Hour, false)

	preview, err := f.svc.PreviewPlanChange(context.Background(), f.customer.ID, sub.ID, f.premium.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, preview.Proration.DaysRemaining)
	assert.Equal(t, int64(15000), preview.Proration.Net)
	assert.Equal(t, int64(17700), preview.AmountDue)

	result, err := f.svc.ChangePlan(context.Background(), f.customer.ID, sub.ID, f.premium.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Invoice)
	assert.Equal(t, int64(17700), result.Invoice.TotalMinor)
	assert.Equal(t, f.premium.ID, result.Subscription.PlanID)
	assert.Equal(t, int64(10240), result.Subscription.DataBalanceMB)
	assert.True(t, result.Subscription.EndDate.Equal(sub.EndDate))
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventPlanChanged))
}

func TestChangePlanDowngradeCreditsCustomer(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusActive, 15*24*time.Hour, false)
	require.NoError(t, f.conn.Model(&models.Subscription{}).Where("id = ?", sub.ID).Update("plan_id", f.premium.ID).Error)

	result, err := f.svc.ChangePlan(context.Background(), f.customer.ID, sub.ID, f.basic.ID)
	require.NoError(t, err)
	assert.Nil(t, result.Invoice)
	assert.Equal(t, int64(-15000), result.Proration.Net)

	var cust models.CustomerProfile
	require.NoError(t, f.conn.First(&cust, "id = ?", f.customer.ID).Error)
	assert.Equal(t, int64(15000), cust.CreditBalanceMinor)
}

func TestDowngradeCreditReducesNextRecharge(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusActive, 15*24*time.Hour, false)
	require.NoError(t, f.conn.Model(&models.Subscription{}).Where("id = ?", sub.ID).Update("plan_id", f.premium.ID).Error)
	_, err := f.svc.ChangePlan(context.Background(), f.customer.ID, sub.ID, f.basic.ID)
	require.NoError(t, err)

	result, err := f.svc.Recharge(context.Background(), f.customer.ID, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Invoice)
	assert.Equal(t, int64(15000), result.Invoice.SubtotalMinor)
	assert.Equal(t, int64(17700), result.Invoice.TotalMinor)
	require.Len(t, result.Invoice.LineItems, 2)
	assert.Equal(t, invoices.CreditLineDescription, result.Invoice.LineItems[1].Description)
	assert.Equal(t, int64(-15000), result.Invoice.LineItems[1].Amount)

	var cust models.CustomerProfile
	require.NoError(t, f.conn.First(&cust, "id = ?", f.customer.ID).Error)
	assert.Zero(t, cust.CreditBalanceMinor)

	again, err := f.svc.Recharge(context.Background(), f.customer.ID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(35400), again.Invoice.TotalMinor)
}

func TestChangePlanRejectsSamePlanAndInactive(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusActive, 15*24*time.Hour, false)

	_, err := f.svc.ChangePlan(context.Background(), f.customer.ID, sub.ID, f.basic.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	require.NoError(t, f.conn.Model(&models.PlanConfiguration{}).Where("id = ?", f.premium.ID).Update("active", false).Error)
	_, err = f.svc.ChangePlan(context.Background(), f.customer.ID, sub.ID, f.premium.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, f.basic.ID, f.reload(t, sub.ID).PlanID)
}

func TestCancelCoolsDownNumber(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusActive, 15*24*time.Hour, true)

	dto, err := f.svc.Cancel(context.Background(), f.customer.ID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusCancelled, dto.Status)
	assert.False(t, dto.AutoRenew)
	require.NotNil(t, dto.CancelledAt)
	assert.Equal(t, enums.MsisdnStatusCoolingDown, f.msisdnStatus(t, sub.MsisdnID))

	_, err = f.svc.Cancel(context.Background(), f.customer.ID, sub.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestAdminSuspendAndReactivate(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusActive, 15*24*time.Hour, false)

	dto, err := f.svc.Suspend(context.Background(), sub.ID, "fraud review")
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusSuspended, dto.Status)

	_, err = f.svc.Suspend(context.Background(), sub.ID, "again")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	dto, err = f.svc.Reactivate(context.Background(), sub.ID, "")
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, dto.Status)
	assert.Nil(t, dto.SuspendedAt)
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventSubscriptionSuspended))
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventSubscriptionReactivated))
}

func TestExpireDueRenewsAutoRenewing(t *testing.T) {
	f := newFixture(t)
	renewing := f.seedSubscription(t, enums.SubscriptionStatusActive, -time.Minute, true)
	lapsing := f.seedSubscription(t, enums.SubscriptionStatusActive, -time.Minute, false)
	f.seedSubscription(t, enums.SubscriptionStatusActive, time.Hour, false)

	report, err := f.svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExpiryReport{Expired: 1, Renewed: 1}, report)

	got := f.reload(t, renewing.ID)
	assert.Equal(t, enums.SubscriptionStatusActive, got.Status)
	assert.True(t, got.EndDate.Equal(f.clock.AddDate(0, 0, 30)))

	var attempts []models.PaymentAttempt
	require.NoError(t, f.conn.Where("subscription_id = ?", renewing.ID).Find(&attempts).Error)
	require.Len(t, attempts, 1)
	assert.Equal(t, enums.PaymentAttemptPending, attempts[0].Status)

	assert.Equal(t, enums.SubscriptionStatusExpired, f.reload(t, lapsing.ID).Status)
	assert.Equal(t, enums.MsisdnStatusCoolingDown, f.msisdnStatus(t, lapsing.MsisdnID))
}

func TestSetAutoRenew(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, enums.SubscriptionStatusActive, time.Hour, false)

	dto, err := f.svc.SetAutoRenew(context.Background(), f.customer.ID, sub.ID, true)
	require.NoError(t, err)
	assert.True(t, dto.AutoRenew)
}
