package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/billing"
	"github.com/angelmondragon/telcobill-backend/internal/customers"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/msisdn"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/internal/plans"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

// Top-up rates in minor units per unit.
const (
	DataRatePerMB      int64 = 20
	VoiceRatePerMinute int64 = 50
	SMSRatePerMessage  int64 = 25
	defaultCoolingDays       = 90
	expiryBatchSize          = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the customer and admin surface over subscriptions.
type Service interface {
	List(ctx context.Context, customerID uuid.UUID, page pagination.Params) (types.Page[SubscriptionDTO], error)
	Get(ctx context.Context, customerID, id uuid.UUID) (*SubscriptionDTO, error)
	Recharge(ctx context.Context, customerID, id uuid.UUID) (*BillingResult, error)
	TopUp(ctx context.Context, customerID, id uuid.UUID, input TopUpInput) (*BillingResult, error)
	PreviewPlanChange(ctx context.Context, customerID, id, newPlanID uuid.UUID) (*PlanChangePreview, error)
	ChangePlan(ctx context.Context, customerID, id, newPlanID uuid.UUID) (*PlanChangeResult, error)
	Cancel(ctx context.Context, customerID, id uuid.UUID) (*SubscriptionDTO, error)
	SetAutoRenew(ctx context.Context, customerID, id uuid.UUID, enabled bool) (*SubscriptionDTO, error)

	AdminList(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[SubscriptionDTO], error)
	Suspend(ctx context.Context, id uuid.UUID, reason string) (*SubscriptionDTO, error)
	Reactivate(ctx context.Context, id uuid.UUID, reason string) (*SubscriptionDTO, error)

	ExpireDue(ctx context.Context) (ExpiryReport, error)
}

type ServiceParams struct {
	Repo            *Repository
	Plans           *plans.Repository
	Msisdns         *msisdn.Repository
	Customers       *customers.Repository
	Invoices        *invoices.Repository
	Payments        payments.Service
	Lifecycle       *Lifecycle
	Tx              txRunner
	Outbox          outbox.Emitter
	Logger          *logger.Logger
	CoolingDownDays int
	Now             func() time.Time
}

type service struct {
	repo        *Repository
	plans       *plans.Repository
	msisdns     *msisdn.Repository
	customers   *customers.Repository
	invoices    *invoices.Repository
	payments    payments.Service
	lifecycle   *Lifecycle
	tx          txRunner
	outbox      outbox.Emitter
	logg        *logger.Logger
	coolingDays int
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("subscription repository required")
	case params.Plans == nil:
		return nil, fmt.Errorf("plan repository required")
	case params.Msisdns == nil:
		return nil, fmt.Errorf("msisdn repository required")
	case params.Customers == nil:
		return nil, fmt.Errorf("customer repository required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payments service required")
	case params.Lifecycle == nil:
		return nil, fmt.Errorf("subscription lifecycle required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	cooling := params.CoolingDownDays
	if cooling <= 0 {
		cooling = defaultCoolingDays
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:        params.Repo,
		plans:       params.Plans,
		msisdns:     params.Msisdns,
		customers:   params.Customers,
		invoices:    params.Invoices,
		payments:    params.Payments,
		lifecycle:   params.Lifecycle,
		tx:          params.Tx,
		outbox:      params.Outbox,
		logg:        logg,
		coolingDays: cooling,
		now:         now,
	}, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID, page pagination.Params) (types.Page[SubscriptionDTO], error) {
	return s.AdminList(ctx, ListFilter{CustomerID: &customerID}, page)
}

func (s *service) AdminList(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[SubscriptionDTO], error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return types.Page[SubscriptionDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid subscription status")
	}
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return types.Page[SubscriptionDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	items, err := s.withPlans(ctx, rows)
	if err != nil {
		return types.Page[SubscriptionDTO]{}, err
	}
	return types.Page[SubscriptionDTO]{Items: items, Limit: page.Limit, Offset: page.Offset, Total: total}, nil
}

func (s *service) Get(ctx context.Context, customerID, id uuid.UUID) (*SubscriptionDTO, error) {
	sub, err := s.repo.FindForCustomer(ctx, customerID, id)
	if err != nil {
		return nil, db.MapError(err, "subscription")
	}
	items, err := s.withPlans(ctx, []models.Subscription{*sub})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// Recharge starts a fresh validity period on the same plan, resetting balances to quota.
// Expired subscriptions come back to active if their number has not been recycled.
func (s *service) Recharge(ctx context.Context, customerID, id uuid.UUID) (*BillingResult, error) {
	var (
		bill *payments.Bill
		sub  *models.Subscription
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForCustomer(ctx, customerID, id)
		if err != nil {
			return db.MapError(err, "subscription")
		}
		if current.Status != enums.SubscriptionStatusActive && current.Status != enums.SubscriptionStatusExpired {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot recharge a %s subscription", current.Status)
		}
		plan, err := s.plans.WithTx(tx).FindByID(ctx, current.PlanID)
		if err != nil {
			return db.MapError(err, "plan")
		}

		now := s.now()
		if current.Status == enums.SubscriptionStatusExpired {
			ok, err := s.msisdns.WithTx(tx).Reclaim(ctx, current.MsisdnID, customerID, now)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "the number of this subscription has been recycled")
			}
		}

		ok, err := repo.Transition(ctx, current.ID, []enums.SubscriptionStatus{current.Status}, map[string]any{
			"status":                enums.SubscriptionStatusActive,
			"start_date":            now,
			"end_date":              now.AddDate(0, 0, plan.ValidityDays),
			"data_balance_mb":       plan.DataQuotaMB,
			"voice_balance_minutes": plan.VoiceQuotaMinutes,
			"sms_balance":           plan.SMSQuota,
			"updated_at":            now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "subscription changed concurrently")
		}

		bill, err = s.payments.BillTx(ctx, tx, invoices.IssueInput{
			CustomerID:     customerID,
			SubscriptionID: &current.ID,
			LineItems:      types.LineItems{{Description: "Recharge: " + plan.Name, Amount: plan.PriceMinor, Quantity: 1}},
			Reason:         invoices.ReasonRecharge,
		})
		if err != nil {
			return err
		}
		sub, err = repo.FindByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "recharge subscription")
	}
	return s.billed(ctx, sub, bill), nil
}

// TopUp adds extra units on top of the current balances at fixed per-unit rates.
func (s *service) TopUp(ctx context.Context, customerID, id uuid.UUID, input TopUpInput) (*BillingResult, error) {
	if input.DataMB < 0 || input.VoiceMinutes < 0 || input.SMS < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "top-up quantities must be non-negative")
	}
	items := topUpItems(input)
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "top-up needs at least one positive quantity")
	}

	var (
		bill *payments.Bill
		sub  *models.Subscription
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForCustomer(ctx, customerID, id)
		if err != nil {
			return db.MapError(err, "subscription")
		}
		if current.Status != enums.SubscriptionStatusActive {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot top up a %s subscription", current.Status)
		}
		if err := repo.AddBalances(ctx, current.ID, input.DataMB, input.VoiceMinutes, input.SMS, s.now()); err != nil {
			return err
		}
		bill, err = s.payments.BillTx(ctx, tx, invoices.IssueInput{
			CustomerID:     customerID,
			SubscriptionID: &current.ID,
			LineItems:      items,
			Reason:         invoices.ReasonTopUp,
		})
		if err != nil {
			return err
		}
		sub, err = repo.FindByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "top up subscription")
	}
	return s.billed(ctx, sub, bill), nil
}

func topUpItems(input TopUpInput) types.LineItems {
	var items types.LineItems
	if input.DataMB > 0 {
		items = append(items, types.LineItem{Description: fmt.Sprintf("Data top-up (%d MB)", input.DataMB), Amount: input.DataMB * DataRatePerMB, Quantity: int(input.DataMB)})
	}
	if input.VoiceMinutes > 0 {
		items = append(items, types.LineItem{Description: fmt.Sprintf("Voice top-up (%d min)", input.VoiceMinutes), Amount: input.VoiceMinutes * VoiceRatePerMinute, Quantity: int(input.VoiceMinutes)})
	}
	if input.SMS > 0 {
		items = append(items, types.LineItem{Description: fmt.Sprintf("SMS top-up (%d)", input.SMS), Amount: input.SMS * SMSRatePerMessage, Quantity: int(input.SMS)})
	}
	return items
}

func (s *service) PreviewPlanChange(ctx context.Context, customerID, id, newPlanID uuid.UUID) (*PlanChangePreview, error) {
	sub, err := s.repo.FindForCustomer(ctx, customerID, id)
	if err != nil {
		return nil, db.MapError(err, "subscription")
	}
	current, next, err := s.planChangePlans(ctx, s.plans, sub, newPlanID)
	if err != nil {
		return nil, err
	}
	return previewFor(sub, current, next, s.now()), nil
}

// ChangePlan prorates the rest of the cycle, switches plan, resets balances to the new
// quota and emits plan_changed, all in one transaction. A positive net is invoiced and a
// negative net is credited to the customer.
func (s *service) ChangePlan(ctx context.Context, customerID, id, newPlanID uuid.UUID) (*PlanChangeResult, error) {
	var (
		bill    *payments.Bill
		sub     *models.Subscription
		preview *PlanChangePreview
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForCustomer(ctx, customerID, id)
		if err != nil {
			return db.MapError(err, "subscription")
		}
		oldPlan, newPlan, err := s.planChangePlans(ctx, s.plans.WithTx(tx), current, newPlanID)
		if err != nil {
			return err
		}
		now := s.now()
		preview = previewFor(current, oldPlan, newPlan, now)
		proration := preview.Proration

		ok, err := repo.Transition(ctx, current.ID, []enums.SubscriptionStatus{enums.SubscriptionStatusActive}, map[string]any{
			"plan_id":               newPlan.ID,
			"data_balance_mb":       newPlan.DataQuotaMB,
			"voice_balance_minutes": newPlan.VoiceQuotaMinutes,
			"sms_balance":           newPlan.SMSQuota,
			"updated_at":            now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "subscription changed concurrently")
		}

		var invoiceID *uuid.UUID
		switch {
		case proration.Net > 0:
			bill, err = s.payments.BillTx(ctx, tx, invoices.IssueInput{
				CustomerID:     customerID,
				SubscriptionID: &current.ID,
				LineItems: types.LineItems{{
					Description: fmt.Sprintf("Plan change %s to %s (%d days prorated)", oldPlan.Name, newPlan.Name, proration.DaysRemaining),
					Amount:      proration.Net,
					Quantity:    1,
				}},
				Reason: invoices.ReasonPlanChange,
			})
			if err != nil {
				return err
			}
			invoiceID = &bill.Invoice.ID
		case proration.Net < 0:
			if err := s.customers.WithTx(tx).AddCredit(ctx, customerID, -proration.Net); err != nil {
				return err
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPlanChanged,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   current.ID,
			OccurredAt:    now,
			Data: payloads.PlanChangedEvent{
				SubscriptionID: current.ID,
				CustomerID:     customerID,
				OldPlanID:      oldPlan.ID,
				NewPlanID:      newPlan.ID,
				NewPlanName:    newPlan.Name,
				DaysRemaining:  proration.DaysRemaining,
				NetMinor:       proration.Net,
				InvoiceID:      invoiceID,
			},
		}); err != nil {
			return err
		}
		sub, err = repo.FindByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "change plan")
	}
	result := &PlanChangeResult{BillingResult: *s.billed(ctx, sub, bill), Proration: preview.Proration}
	result.Subscription.Plan = preview.NewPlan
	return result, nil
}

func (s *service) planChangePlans(ctx context.Context, repo *plans.Repository, sub *models.Subscription, newPlanID uuid.UUID) (*models.PlanConfiguration, *models.PlanConfiguration, error) {
	if sub.Status != enums.SubscriptionStatusActive {
		return nil, nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot change plan of a %s subscription", sub.Status)
	}
	if newPlanID == sub.PlanID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "new plan must differ from the current plan")
	}
	current, err := repo.FindByID(ctx, sub.PlanID)
	if err != nil {
		return nil, nil, db.MapError(err, "plan")
	}
	next, err := repo.FindByID(ctx, newPlanID)
	if err != nil {
		return nil, nil, db.MapError(err, "plan")
	}
	if !next.Active {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "new plan is not available")
	}
	return current, next, nil
}

func previewFor(sub *models.Subscription, current, next *models.PlanConfiguration, now time.Time) *PlanChangePreview {
	proration := billing.CalculateProration(current.PriceMinor, next.PriceMinor, sub.EndDate, now)
	preview := &PlanChangePreview{
		SubscriptionID: sub.ID,
		CurrentPlan:    plans.FromModel(current),
		NewPlan:        plans.FromModel(next),
		RenewalDate:    sub.EndDate,
		Proration:      proration,
	}
	if proration.Net > 0 {
		preview.AmountDue = billing.TotalsForSubtotal(proration.Net).Total
	} else {
		preview.CreditApplied = -proration.Net
	}
	return preview
}

// Cancel ends the subscription and sends its number to cooling down.
func (s *service) Cancel(ctx context.Context, customerID, id uuid.UUID) (*SubscriptionDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForCustomer(ctx, customerID, id)
		if err != nil {
			return db.MapError(err, "subscription")
		}
		if !current.Status.CanTransitionTo(enums.SubscriptionStatusCancelled) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot cancel a %s subscription", current.Status)
		}
		now := s.now()
		ok, err := repo.Transition(ctx, current.ID, []enums.SubscriptionStatus{current.Status}, map[string]any{
			"status":       enums.SubscriptionStatusCancelled,
			"cancelled_at": now,
			"auto_renew":   false,
			"updated_at":   now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "subscription changed concurrently")
		}
		_, err = s.msisdns.WithTx(tx).CoolDown(ctx, current.MsisdnID, now, now.AddDate(0, 0, s.coolingDays))
		return err
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "cancel subscription")
	}
	return s.Get(ctx, customerID, id)
}

func (s *service) SetAutoRenew(ctx context.Context, customerID, id uuid.UUID, enabled bool) (*SubscriptionDTO, error) {
	sub, err := s.repo.FindForCustomer(ctx, customerID, id)
	if err != nil {
		return nil, db.MapError(err, "subscription")
	}
	if sub.Status == enums.SubscriptionStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is cancelled")
	}
	live := []enums.SubscriptionStatus{enums.SubscriptionStatusPending, enums.SubscriptionStatusActive, enums.SubscriptionStatusSuspended, enums.SubscriptionStatusExpired}
	if _, err := s.repo.Transition(ctx, id, live, map[string]any{"auto_renew": enabled, "updated_at": s.now()}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update auto-renew")
	}
	return s.Get(ctx, customerID, id)
}

func (s *service) Suspend(ctx context.Context, id uuid.UUID, reason string) (*SubscriptionDTO, error) {
	return s.adminTransition(ctx, id, reason, s.lifecycle.SuspendTx)
}

func (s *service) Reactivate(ctx context.Context, id uuid.UUID, reason string) (*SubscriptionDTO, error) {
	return s.adminTransition(ctx, id, reason, s.lifecycle.ReactivateTx)
}

func (s *service) adminTransition(ctx context.Context, id uuid.UUID, reason string, apply func(context.Context, *gorm.DB, uuid.UUID, string) (bool, error)) (*SubscriptionDTO, error) {
	if reason == "" {
		reason = "admin action"
	}
	var sub *models.Subscription
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := apply(ctx, tx, id, reason)
		if err != nil {
			return err
		}
		sub, err = s.repo.WithTx(tx).FindByID(ctx, id)
		if err != nil {
			return db.MapError(err, "subscription")
		}
		if !ok {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "subscription is %s", sub.Status)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "update subscription status")
	}
	return FromModel(sub), nil
}

// ExpireDue handles active subscriptions past their end date. Auto-renewing ones get a
// renewal invoice and pending payment attempt, a new period and fresh balances. The rest
// expire and their numbers cool down. Each subscription commits on its own.
func (s *service) ExpireDue(ctx context.Context) (ExpiryReport, error) {
	var report ExpiryReport
	now := s.now()
	due, err := s.repo.ListEnded(ctx, now, expiryBatchSize)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ended subscriptions")
	}

	var errs error
	for i := range due {
		sub := due[i]
		var renewed bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if sub.AutoRenew {
				renewed = true
				return s.renewTx(ctx, tx, &sub, now)
			}
			return s.expireTx(ctx, tx, &sub, now)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
			continue
		}
		if renewed {
			report.Renewed++
		} else {
			report.Expired++
		}
	}
	return report, errs
}

func (s *service) renewTx(ctx context.Context, tx *gorm.DB, sub *models.Subscription, now time.Time) error {
	plan, err := s.plans.WithTx(tx).FindByID(ctx, sub.PlanID)
	if err != nil {
		return err
	}
	ok, err := s.repo.WithTx(tx).Transition(ctx, sub.ID, []enums.SubscriptionStatus{enums.SubscriptionStatusActive}, map[string]any{
		"start_date":            now,
		"end_date":              now.AddDate(0, 0, plan.ValidityDays),
		"data_balance_mb":       plan.DataQuotaMB,
		"voice_balance_minutes": plan.VoiceQuotaMinutes,
		"sms_balance":           plan.SMSQuota,
		"updated_at":            now,
	})
	if err != nil || !ok {
		return err
	}
	_, err = s.payments.BillTx(ctx, tx, invoices.IssueInput{
		CustomerID:     sub.CustomerID,
		SubscriptionID: &sub.ID,
		LineItems:      types.LineItems{{Description: "Renewal: " + plan.Name, Amount: plan.PriceMinor, Quantity: 1}},
		Reason:         invoices.ReasonRenewal,
	})
	return err
}

func (s *service) expireTx(ctx context.Context, tx *gorm.DB, sub *models.Subscription, now time.Time) error {
	ok, err := s.repo.WithTx(tx).Transition(ctx, sub.ID, []enums.SubscriptionStatus{enums.SubscriptionStatusActive}, map[string]any{
		"status":     enums.SubscriptionStatusExpired,
		"updated_at": now,
	})
	if err != nil || !ok {
		return err
	}
	_, err = s.msisdns.WithTx(tx).CoolDown(ctx, sub.MsisdnID, now, now.AddDate(0, 0, s.coolingDays))
	return err
}

// billed collects the bill after commit and assembles the response.
func (s *service) billed(ctx context.Context, sub *models.Subscription, bill *payments.Bill) *BillingResult {
	result := &BillingResult{Subscription: FromModel(sub)}
	if bill == nil {
		return result
	}
	result.Payment = s.payments.CollectBill(ctx, bill)
	result.Invoice = s.invoiceAfterCollection(ctx, bill.Invoice)
	if reloaded, err := s.repo.FindByID(ctx, sub.ID); err == nil {
		result.Subscription = FromModel(reloaded)
	}
	return result
}

func (s *service) invoiceAfterCollection(ctx context.Context, inv *models.Invoice) *invoices.InvoiceDTO {
	if s.invoices == nil {
		return invoices.FromModel(inv)
	}
	fresh, err := s.invoices.FindByID(ctx, inv.ID)
	if err != nil {
		return invoices.FromModel(inv)
	}
	return invoices.FromModel(fresh)
}

func (s *service) withPlans(ctx context.Context, rows []models.Subscription) ([]SubscriptionDTO, error) {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.PlanID)
	}
	byID, err := s.plans.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plans")
	}
	out := make([]SubscriptionDTO, 0, len(rows))
	for i := range rows {
		dto := FromModel(&rows[i])
		if plan, ok := byID[rows[i].PlanID]; ok {
			dto.Plan = plans.FromModel(&plan)
		}
		out = append(out, *dto)
	}
	return out, nil
}
