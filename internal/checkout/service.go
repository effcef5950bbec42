package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/billing"
	"github.com/angelmondragon/telcobill-backend/internal/checkout/helpers"
	"github.com/angelmondragon/telcobill-backend/internal/customers"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/msisdn"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/internal/plans"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
)

// DefaultSimFeeMinor is charged once on every new line.
const DefaultSimFeeMinor int64 = 4900

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type numberClaimer interface {
	HoldTx(ctx context.Context, tx *gorm.DB, customerID, id uuid.UUID) (*models.MsisdnInventory, error)
}

// Service places SIM orders.
type Service interface {
	Quote(ctx context.Context, input SimOrderInput) (*OrderQuote, error)
	PlaceSimOrder(ctx context.Context, customerID uuid.UUID, input SimOrderInput) (*OrderResult, error)
}

type ServiceParams struct {
	Repo          *Repository
	Customers     *customers.Repository
	Plans         *plans.Repository
	Msisdns       *msisdn.Repository
	Claimer       numberClaimer
	Subscriptions *subscriptions.Repository
	Payments      payments.Service
	Tx            txRunner
	Outbox        outbox.Emitter
	SimFeeMinor   int64
	MaxLines      int
	Now           func() time.Time
}

type service struct {
	repo     *Repository
	cust     *customers.Repository
	plans    *plans.Repository
	numbers  *msisdn.Repository
	claimer  numberClaimer
	subs     *subscriptions.Repository
	payments payments.Service
	tx       txRunner
	outbox   outbox.Emitter
	simFee   int64
	maxLines int
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Repo == nil || params.Customers == nil || params.Plans == nil || params.Msisdns == nil || params.Subscriptions == nil:
		return nil, fmt.Errorf("checkout repositories required")
	case params.Claimer == nil:
		return nil, fmt.Errorf("number claimer required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payments service required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	simFee := params.SimFeeMinor
	if simFee <= 0 {
		simFee = DefaultSimFeeMinor
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		cust:     params.Customers,
		plans:    params.Plans,
		numbers:  params.Msisdns,
		claimer:  params.Claimer,
		subs:     params.Subscriptions,
		payments: params.Payments,
		tx:       params.Tx,
		outbox:   params.Outbox,
		simFee:   simFee,
		maxLines: params.MaxLines,
		now:      now,
	}, nil
}

func (s *service) Quote(ctx context.Context, input SimOrderInput) (*OrderQuote, error) {
	plan, err := s.plans.FindByID(ctx, input.PlanID)
	if err != nil {
		return nil, db.MapError(err, "plan")
	}
	if err := helpers.ValidatePlan(plan); err != nil {
		return nil, err
	}
	number, err := s.numbers.FindByID(ctx, input.MsisdnID)
	if err != nil {
		return nil, db.MapError(err, "number")
	}
	lines := helpers.BuildOrderLines(plan, number, s.simFee)
	totals := billing.CalculateInvoiceTotals(lines)
	return &OrderQuote{LineItems: lines, SubtotalMinor: totals.Subtotal, TaxMinor: totals.Tax, TotalMinor: totals.Total}, nil
}

// PlaceSimOrder claims the number, opens a pending line and bills it in one transaction.
// The charge runs after commit; fulfillment activates the line from order_placed.
func (s *service) PlaceSimOrder(ctx context.Context, customerID uuid.UUID, input SimOrderInput) (*OrderResult, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if input.MsisdnID == uuid.Nil || input.PlanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "msisdn_id and plan_id required")
	}

	var (
		sub    *models.Subscription
		number *models.MsisdnInventory
		bill   *payments.Bill
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		customer, err := s.cust.WithTx(tx).FindByID(ctx, customerID)
		if err != nil {
			return db.MapError(err, "customer")
		}
		live, err := s.repo.WithTx(tx).CountLiveLines(ctx, customerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count lines")
		}
		if err := helpers.ValidateCustomer(customer, live, s.maxLines); err != nil {
			return err
		}

		plan, err := s.plans.WithTx(tx).FindByID(ctx, input.PlanID)
		if err != nil {
			return db.MapError(err, "plan")
		}
		if err := helpers.ValidatePlan(plan); err != nil {
			return err
		}

		number, err = s.claimer.HoldTx(ctx, tx, customerID, input.MsisdnID)
		if err != nil {
			return err
		}

		now := s.now()
		sub = &models.Subscription{
			CustomerID:          customerID,
			PlanID:              plan.ID,
			MsisdnID:            number.ID,
			PhoneNumber:         number.PhoneNumber,
			Status:              enums.SubscriptionStatusPending,
			StartDate:           now,
			EndDate:             now.AddDate(0, 0, plan.ValidityDays),
			DataBalanceMB:       plan.DataQuotaMB,
			VoiceBalanceMinutes: plan.VoiceQuotaMinutes,
			SMSBalance:          plan.SMSQuota,
			AutoRenew:           input.AutoRenew,
		}
		if err := s.subs.WithTx(tx).Create(ctx, sub); err != nil {
			return db.MapError(err, "subscription")
		}

		bill, err = s.payments.BillTx(ctx, tx, invoices.IssueInput{
			CustomerID:     customerID,
			SubscriptionID: &sub.ID,
			LineItems:      helpers.BuildOrderLines(plan, number, s.simFee),
			Reason:         invoices.ReasonSimOrder,
		})
		if err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			OccurredAt:    now,
			Data: payloads.OrderPlacedEvent{
				SubscriptionID: sub.ID,
				CustomerID:     customerID,
				MsisdnID:       number.ID,
				PhoneNumber:    number.PhoneNumber,
				PlanID:         plan.ID,
				InvoiceID:      bill.Invoice.ID,
				TotalMinor:     bill.Invoice.TotalMinor,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "place sim order")
	}

	result := &OrderResult{
		Subscription: subscriptions.FromModel(sub),
		Number:       msisdn.FromModel(number),
		Invoice:      invoices.FromModel(bill.Invoice),
	}
	result.Payment = s.payments.CollectBill(ctx, bill)
	if result.Payment != nil && result.Payment.Status == enums.PaymentAttemptSucceeded {
		result.Invoice.Status = enums.InvoiceStatusPaid
	}
	return result, nil
}
