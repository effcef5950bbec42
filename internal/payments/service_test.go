package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/customers"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

type scriptedGateway struct {
	outcomes []ChargeOutcome
	errs     []error
	calls    []ChargeRequest
	onCharge func()
}

func (g *scriptedGateway) Charge(_ context.Context, req ChargeRequest) (ChargeOutcome, error) {
	g.calls = append(g.calls, req)
	if g.onCharge != nil {
		g.onCharge()
	}
	i := len(g.calls) - 1
	var err error
	if i < len(g.errs) {
		err = g.errs[i]
	}
	if i < len(g.outcomes) {
		return g.outcomes[i], err
	}
	return ChargeOutcome{Reference: "pi_default", Succeeded: true}, err
}

type recordingLifecycle struct {
	suspended   []uuid.UUID
	reactivated []uuid.UUID
}

func (r *recordingLifecycle) SuspendTx(_ context.Context, _ *gorm.DB, id uuid.UUID, _ string) (bool, error) {
	r.suspended = append(r.suspended, id)
	return true, nil
}

func (r *recordingLifecycle) ReactivateTx(_ context.Context, _ *gorm.DB, id uuid.UUID, _ string) (bool, error) {
	r.reactivated = append(r.reactivated, id)
	return true, nil
}

type harness struct {
	svc       Service
	client    *db.Client
	conn      *gorm.DB
	gateway   *scriptedGateway
	lifecycle *recordingLifecycle
	invoices  invoices.Service
	clock     time.Time
	customer  *models.CustomerProfile
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client, conn := dbtest.Client(t,
		&models.CustomerProfile{}, &models.Invoice{}, &models.PaymentAttempt{}, &models.OutboxEvent{})
	h := &harness{
		client:    client,
		conn:      conn,
		gateway:   &scriptedGateway{},
		lifecycle: &recordingLifecycle{},
		clock:     time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return h.clock }
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)

	invSvc, err := invoices.NewService(invoices.ServiceParams{Repo: invoices.NewRepository(conn), Tx: client, Outbox: emitter, Now: now})
	require.NoError(t, err)
	h.invoices = invSvc

	cus, pm := "cus_123", "pm_card_visa"
	h.customer = &models.CustomerProfile{Email: "p@example.com", PasswordHash: "x", FirstName: "P", LastName: "Q",
		KYCStatus: enums.KYCStatusVerified, IsActive: true, StripeCustomerID: &cus, DefaultPaymentMethodID: &pm}
	require.NoError(t, conn.Create(h.customer).Error)

	svc, err := NewService(ServiceParams{
		Repo:          NewRepository(conn),
		Invoices:      invoices.NewRepository(conn),
		Issuer:        invSvc,
		Customers:     customers.NewRepository(conn),
		Tx:            client,
		Outbox:        emitter,
		Gateway:       h.gateway,
		Subscriptions: h.lifecycle,
		Logger:        logger.Nop(),
		MaxRetries:    3,
		RetryDelay:    24 * time.Hour,
		Now:           now,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) issueWithAttempt(t *testing.T, subID *uuid.UUID) (*models.Invoice, *models.PaymentAttempt) {
	t.Helper()
	var inv *models.Invoice
	var attempt *models.PaymentAttempt
	err := h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		inv, err = h.invoices.IssueTx(context.Background(), tx, invoices.IssueInput{
			CustomerID:     h.customer.ID,
			SubscriptionID: subID,
			LineItems:      types.LineItems{{Description: "Unlimited 349", Amount: 34900, Quantity: 1}},
			Reason:         invoices.ReasonRecharge,
		})
		if err != nil {
			return err
		}
		attempt, err = h.svc.RecordTx(context.Background(), tx, inv)
		return err
	})
	require.NoError(t, err)
	return inv, attempt
}

func (h *harness) events(t *testing.T, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, h.conn.Where("event_type = ?", eventType).Find(&rows).Error)
	return rows
}

func TestCollectSuccessSettlesInvoice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	subID := uuid.New()
	inv, attempt := h.issueWithAttempt(t, &subID)
	assert.Equal(t, int64(41182), attempt.AmountMinor)

	h.gateway.outcomes = []ChargeOutcome{{Reference: "pi_ok", Succeeded: true}}
	result, err := h.svc.Collect(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentAttemptSucceeded, result.Status)
	assert.Equal(t, 1, result.AttemptNumber)
	require.NotNil(t, result.GatewayReference)
	assert.Equal(t, "pi_ok", *result.GatewayReference)

	require.Len(t, h.gateway.calls, 1)
	call := h.gateway.calls[0]
	assert.Equal(t, "cus_123", call.CustomerRef)
	assert.Equal(t, "attempt_"+attempt.ID.String()+"_1", call.IdempotencyKey)

	paid, err := h.invoices.AdminGet(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.InvoiceStatusPaid, paid.Status)
	assert.Equal(t, []uuid.UUID{subID}, h.lifecycle.reactivated)
	assert.Len(t, h.events(t, enums.EventPaymentSettled), 1)

	_, err = h.svc.Collect(ctx, attempt.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestRetryScheduleUntilExhausted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	subID := uuid.New()
	_, attempt := h.issueWithAttempt(t, &subID)
	declined := ChargeOutcome{Reference: "pi_no", FailureReason: "insufficient funds"}
	h.gateway.outcomes = []ChargeOutcome{declined, declined, declined}

	first, err := h.svc.Collect(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentAttemptFailed, first.Status)
	require.NotNil(t, first.NextRetryAt)
	assert.True(t, first.NextRetryAt.Equal(h.clock.Add(24*time.Hour)))

	report, err := h.svc.RetryDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Processed, "retry is not due yet")

	h.clock = h.clock.Add(24 * time.Hour)
	report, err = h.svc.RetryDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, RetryReport{Processed: 1, Failed: 1}, report)
	assert.Empty(t, h.lifecycle.suspended)

	h.clock = h.clock.Add(24 * time.Hour)
	report, err = h.svc.RetryDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, RetryReport{Processed: 1, Exhausted: 1}, report)
	assert.Equal(t, []uuid.UUID{subID}, h.lifecycle.suspended)

	final, err := h.svc.AdminList(ctx, ListFilter{InvoiceID: &attempt.InvoiceID}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, final.Items, 1)
	assert.Equal(t, enums.PaymentAttemptExhausted, final.Items[0].Status)
	assert.Equal(t, 3, final.Items[0].AttemptNumber)
	assert.Nil(t, final.Items[0].NextRetryAt)
	assert.Len(t, h.events(t, enums.EventPaymentFailed), 3)

	h.clock = h.clock.Add(48 * time.Hour)
	report, err = h.svc.RetryDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Processed, "exhausted attempts are never retried")
}

func TestGatewayErrorIsRecordedNotSwallowed(t *testing.T) {
	h := newHarness(t)
	_, attempt := h.issueWithAttempt(t, nil)
	h.gateway.errs = []error{errors.New("connection reset")}
	h.gateway.outcomes = []ChargeOutcome{{}}

	result, err := h.svc.Collect(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentAttemptFailed, result.Status)
	require.NotNil(t, result.FailureReason)
	assert.Contains(t, *result.FailureReason, "connection reset")
}

func TestRetryDueContinuesPastBrokenAttempt(t *testing.T) {
	h := newHarness(t)
	_, good := h.issueWithAttempt(t, nil)
	broken := &models.PaymentAttempt{InvoiceID: uuid.New(), CustomerID: h.customer.ID, AmountMinor: 100, MaxRetries: 3, Status: enums.PaymentAttemptPending}
	require.NoError(t, h.conn.Create(broken).Error)

	report, err := h.svc.RetryDue(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Succeeded)

	settled, err := h.svc.AdminList(context.Background(), ListFilter{InvoiceID: &good.InvoiceID}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentAttemptSucceeded, settled.Items[0].Status)
}

func TestPayInvoiceDeclineReturnsPaymentFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	inv, _ := h.issueWithAttempt(t, nil)
	h.gateway.outcomes = []ChargeOutcome{{Reference: "pi_x", FailureReason: "card declined"}, {Reference: "pi_y", Succeeded: true}}

	_, err := h.svc.PayInvoice(ctx, h.customer.ID, inv.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodePaymentFailed))

	result, err := h.svc.PayInvoice(ctx, h.customer.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AttemptNumber, "the same attempt is reused")

	_, err = h.svc.PayInvoice(ctx, h.customer.ID, inv.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	_, err = h.svc.PayInvoice(ctx, uuid.New(), inv.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestWebhookSettlesFailedAttemptOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	inv, attempt := h.issueWithAttempt(t, nil)
	h.gateway.outcomes = []ChargeOutcome{{Reference: "pi_late", FailureReason: "processing"}}
	_, err := h.svc.Collect(ctx, attempt.ID)
	require.NoError(t, err)

	// a late failure webhook must not consume another retry
	require.NoError(t, h.svc.HandleGatewayEvent(ctx, GatewayEvent{Reference: "pi_late", FailureReason: "processing"}))
	reloaded, err := NewRepository(h.conn).FindByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.AttemptNumber)

	event := GatewayEvent{AttemptID: attempt.ID.String(), Reference: "pi_late", Succeeded: true}
	require.NoError(t, h.svc.HandleGatewayEvent(ctx, event))
	require.NoError(t, h.svc.HandleGatewayEvent(ctx, event))

	got, err := h.invoices.AdminGet(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.InvoiceStatusPaid, got.Status)
	assert.Len(t, h.events(t, enums.EventPaymentSettled), 1)

	require.NoError(t, h.svc.HandleGatewayEvent(ctx, GatewayEvent{Reference: "pi_unknown", Succeeded: true}))
}

func TestSandboxGateway(t *testing.T) {
	gw := SandboxGateway{}
	ok, err := gw.Charge(context.Background(), ChargeRequest{AttemptID: uuid.New(), PaymentMethodID: "pm_card_visa", AmountMinor: 100})
	require.NoError(t, err)
	assert.True(t, ok.Succeeded)

	declined, err := gw.Charge(context.Background(), ChargeRequest{AttemptID: uuid.New(), PaymentMethodID: DeclineTestPaymentMethod, AmountMinor: 100})
	require.NoError(t, err)
	assert.False(t, declined.Succeeded)
	assert.NotEmpty(t, declined.FailureReason)
}

func TestBillTxAndCollectBill(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var paidBill, freeBill *Bill
	err := h.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		paidBill, err = h.svc.BillTx(ctx, tx, invoices.IssueInput{
			CustomerID: h.customer.ID,
			LineItems:  types.LineItems{{Description: "Data top-up", Amount: 2000, Quantity: 100}},
			Reason:     invoices.ReasonTopUp,
		})
		if err != nil {
			return err
		}
		freeBill, err = h.svc.BillTx(ctx, tx, invoices.IssueInput{
			CustomerID: h.customer.ID,
			LineItems:  types.LineItems{{Description: "Port-in", Amount: 0, Quantity: 1}},
			Reason:     invoices.ReasonPortIn,
		})
		return err
	})
	require.NoError(t, err)

	require.NotNil(t, paidBill.Attempt)
	assert.Equal(t, int64(2360), paidBill.Attempt.AmountMinor)
	assert.Nil(t, freeBill.Attempt)
	assert.Equal(t, enums.InvoiceStatusPaid, freeBill.Invoice.Status)
	assert.Nil(t, h.svc.CollectBill(ctx, freeBill))

	result := h.svc.CollectBill(ctx, paidBill)
	require.NotNil(t, result)
	assert.Equal(t, enums.PaymentAttemptSucceeded, result.Status)
}

func TestDailyRetryIsNotSkippedBySlowGateway(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, attempt := h.issueWithAttempt(t, nil)
	require.NoError(t, h.conn.Model(&models.PaymentAttempt{}).Where("id = ?", attempt.ID).Update("max_retries", 6).Error)

	declined := ChargeOutcome{Reference: "pi_slow", FailureReason: "do not honor"}
	h.gateway.outcomes = []ChargeOutcome{declined, declined, declined, declined, declined}
	h.gateway.onCharge = func() { h.clock = h.clock.Add(800 * time.Millisecond) }

	runAt := h.clock
	first, err := h.svc.Collect(ctx, attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, first.NextRetryAt)
	assert.True(t, first.NextRetryAt.Equal(runAt.Add(24*time.Hour)), "got %s", first.NextRetryAt)

	for day := 1; day <= 3; day++ {
		h.clock = runAt.AddDate(0, 0, day)
		report, err := h.svc.RetryDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Processed, "day %d", day)
	}
	assert.Len(t, h.gateway.calls, 4)
}
