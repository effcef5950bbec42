package porting

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

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
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

const (
	defaultOperator    = "TelcoBill"
	defaultLeadDays    = 2
	defaultCoolingDays = 90
	portedRegion       = "ported"
)

var (
	e164        = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	portingCode = regexp.MustCompile(`^[A-Z0-9]{8}$`)
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	Create(ctx context.Context, customerID uuid.UUID, input CreateInput) (*RequestDTO, error)
	List(ctx context.Context, customerID uuid.UUID, page pagination.Params) (types.Page[RequestDTO], error)
	Cancel(ctx context.Context, customerID, id uuid.UUID) (*RequestDTO, error)

	AdminList(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[RequestDTO], error)
	Approve(ctx context.Context, id uuid.UUID, input ApproveInput) (*RequestDTO, error)
	Reject(ctx context.Context, id uuid.UUID, input RejectInput) (*RequestDTO, error)
	Complete(ctx context.Context, id uuid.UUID) (*CompletionResult, error)
}

type ServiceParams struct {
	Repo            *Repository
	Subscriptions   *subscriptions.Repository
	Plans           *plans.Repository
	Msisdns         *msisdn.Repository
	Payments        payments.Service
	Tx              txRunner
	Outbox          outbox.Emitter
	OperatorName    string
	LeadDays        int
	CoolingDownDays int
	Now             func() time.Time
}

type service struct {
	repo        *Repository
	subs        *subscriptions.Repository
	plans       *plans.Repository
	msisdns     *msisdn.Repository
	payments    payments.Service
	tx          txRunner
	outbox      outbox.Emitter
	operator    string
	leadDays    int
	coolingDays int
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil || params.Subscriptions == nil || params.Plans == nil || params.Msisdns == nil {
		return nil, fmt.Errorf("porting, subscription, plan and msisdn repositories required")
	}
	if params.Payments == nil || params.Tx == nil || params.Outbox == nil {
		return nil, fmt.Errorf("payments, tx runner and outbox required")
	}
	svc := &service{
		repo:        params.Repo,
		subs:        params.Subscriptions,
		plans:       params.Plans,
		msisdns:     params.Msisdns,
		payments:    params.Payments,
		tx:          params.Tx,
		outbox:      params.Outbox,
		operator:    strings.TrimSpace(params.OperatorName),
		leadDays:    params.LeadDays,
		coolingDays: params.CoolingDownDays,
		now:         params.Now,
	}
	if svc.operator == "" {
		svc.operator = defaultOperator
	}
	if svc.leadDays <= 0 {
		svc.leadDays = defaultLeadDays
	}
	if svc.coolingDays <= 0 {
		svc.coolingDays = defaultCoolingDays
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

func (s *service) Create(ctx context.Context, customerID uuid.UUID, input CreateInput) (*RequestDTO, error) {
	var (
		req *models.PortingRequest
		err error
	)
	switch input.Direction {
	case enums.PortIn:
		req, err = s.portInRequest(ctx, customerID, input)
	case enums.PortOut:
		req, err = s.portOutRequest(ctx, customerID, input)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "direction must be port_in or port_out")
	}
	if err != nil {
		return nil, err
	}

	open, err := s.repo.CountOpenForNumber(ctx, req.PhoneNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open porting requests")
	}
	if open > 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "a porting request for %s is already open", req.PhoneNumber)
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create porting request")
	}
	return FromModel(req), nil
}

func (s *service) portInRequest(ctx context.Context, customerID uuid.UUID, input CreateInput) (*models.PortingRequest, error) {
	number := strings.TrimSpace(input.PhoneNumber)
	if !e164.MatchString(number) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone number must be E.164")
	}
	donor := strings.TrimSpace(input.DonorOperator)
	if donor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "donor operator required")
	}
	if strings.EqualFold(donor, s.operator) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "number is already on this network")
	}
	code := strings.ToUpper(strings.TrimSpace(input.PortingCode))
	if !portingCode.MatchString(code) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "porting code must be 8 letters or digits")
	}
	if input.PlanID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan_id required for port-in")
	}
	plan, err := s.plans.FindByID(ctx, *input.PlanID)
	if err != nil {
		return nil, db.MapError(err, "plan")
	}
	if !plan.Active {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "plan is not available")
	}

	existing, err := s.msisdns.FindByNumber(ctx, number)
	switch {
	case err == nil && existing.Status != enums.MsisdnStatusAvailable:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "number is already in use on this network")
	case err != nil && !db.IsNotFound(err):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup msisdn")
	}

	return &models.PortingRequest{
		CustomerID:        customerID,
		PhoneNumber:       number,
		Direction:         enums.PortIn,
		DonorOperator:     donor,
		RecipientOperator: s.operator,
		PortingCode:       code,
		Status:            enums.PortingRequested,
		PlanID:            &plan.ID,
	}, nil
}

func (s *service) portOutRequest(ctx context.Context, customerID uuid.UUID, input CreateInput) (*models.PortingRequest, error) {
	if input.SubscriptionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription_id required for port-out")
	}
	recipient := strings.TrimSpace(input.RecipientOperator)
	if recipient == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient operator required")
	}
	if strings.EqualFold(recipient, s.operator) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient must be another operator")
	}
	sub, err := s.subs.FindForCustomer(ctx, customerID, *input.SubscriptionID)
	if err != nil {
		return nil, db.MapError(err, "subscription")
	}
	if sub.Status != enums.SubscriptionStatusActive && sub.Status != enums.SubscriptionStatusSuspended {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot port out a %s subscription", sub.Status)
	}
	return &models.PortingRequest{
		CustomerID:        customerID,
		PhoneNumber:       sub.PhoneNumber,
		Direction:         enums.PortOut,
		DonorOperator:     s.operator,
		RecipientOperator: recipient,
		PortingCode:       newPortingCode(),
		Status:            enums.PortingRequested,
		SubscriptionID:    &sub.ID,
	}, nil
}

// newPortingCode issues the code the recipient operator quotes back to us.
func newPortingCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return raw[:8]
}

func (s *service) List(ctx context.Context, customerID uuid.UUID, page pagination.Params) (types.Page[RequestDTO], error) {
	return s.list(ctx, ListFilter{CustomerID: &customerID}, page)
}

func (s *service) AdminList(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[RequestDTO], error) {
	return s.list(ctx, filter, page)
}

func (s *service) list(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[RequestDTO], error) {
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return types.Page[RequestDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list porting requests")
	}
	items := make([]RequestDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	return types.Page[RequestDTO]{Items: items, Limit: page.Limit, Offset: page.Offset, Total: total}, nil
}

func (s *service) Cancel(ctx context.Context, customerID, id uuid.UUID) (*RequestDTO, error) {
	req, err := s.repo.FindForCustomer(ctx, customerID, id)
	if err != nil {
		return nil, db.MapError(err, "porting request")
	}
	return s.transition(ctx, req, map[string]any{"status": enums.PortingCancelled, "updated_at": s.now()}, enums.PortingRequested, enums.PortingApproved)
}

func (s *service) Approve(ctx context.Context, id uuid.UUID, input ApproveInput) (*RequestDTO, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "porting request")
	}
	now := s.now()
	scheduled := now.AddDate(0, 0, s.leadDays)
	if input.ScheduledAt != nil {
		if input.ScheduledAt.Before(now) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled_at cannot be in the past")
		}
		scheduled = input.ScheduledAt.UTC()
	}
	return s.transition(ctx, req, map[string]any{"status": enums.PortingApproved, "scheduled_at": scheduled, "updated_at": now}, enums.PortingRequested)
}

func (s *service) Reject(ctx context.Context, id uuid.UUID, input RejectInput) (*RequestDTO, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "porting request")
	}
	return s.transition(ctx, req, map[string]any{"status": enums.PortingRejected, "rejection_reason": reason, "updated_at": s.now()}, enums.PortingRequested, enums.PortingApproved)
}

func (s *service) transition(ctx context.Context, req *models.PortingRequest, updates map[string]any, from ...enums.PortingStatus) (*RequestDTO, error) {
	ok, err := s.repo.Transition(ctx, req.ID, from, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update porting request")
	}
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "porting request is %s", req.Status)
	}
	updated, err := s.repo.FindByID(ctx, req.ID)
	if err != nil {
		return nil, db.MapError(err, "porting request")
	}
	return FromModel(updated), nil
}

// Complete finishes an approved port. A port-in lands the number as active inventory with a
// fresh subscription and its first invoice. A port-out cancels the line and cools the number.
func (s *service) Complete(ctx context.Context, id uuid.UUID) (*CompletionResult, error) {
	var (
		req  *models.PortingRequest
		bill *payments.Bill
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		req, err = repo.FindByID(ctx, id)
		if err != nil {
			return db.MapError(err, "porting request")
		}
		if req.Status != enums.PortingApproved {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot complete a %s porting request", req.Status)
		}
		now := s.now()

		switch req.Direction {
		case enums.PortIn:
			bill, err = s.completePortIn(ctx, tx, req, now)
		case enums.PortOut:
			err = s.completePortOut(ctx, tx, req, now)
		default:
			err = pkgerrors.Newf(pkgerrors.CodeInternal, "unknown porting direction %q", req.Direction)
		}
		if err != nil {
			return err
		}

		ok, err := repo.Transition(ctx, req.ID, []enums.PortingStatus{enums.PortingApproved}, map[string]any{
			"status":          enums.PortingCompleted,
			"subscription_id": req.SubscriptionID,
			"completed_at":    now,
			"updated_at":      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "porting request changed concurrently")
		}
		req.Status = enums.PortingCompleted
		req.CompletedAt = &now

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPortingCompleted,
			AggregateType: enums.AggregatePorting,
			AggregateID:   req.ID,
			OccurredAt:    now,
			Data: payloads.PortingCompletedEvent{
				PortingRequestID: req.ID,
				CustomerID:       req.CustomerID,
				PhoneNumber:      req.PhoneNumber,
				Direction:        req.Direction,
				SubscriptionID:   req.SubscriptionID,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "complete porting request")
	}

	result := &CompletionResult{Request: FromModel(req)}
	if bill != nil {
		result.Payment = s.payments.CollectBill(ctx, bill)
		result.Invoice = invoices.FromModel(bill.Invoice)
		if result.Payment != nil && result.Payment.Status == enums.PaymentAttemptSucceeded {
			result.Invoice.Status = enums.InvoiceStatusPaid
		}
	}
	return result, nil
}

func (s *service) completePortIn(ctx context.Context, tx *gorm.DB, req *models.PortingRequest, now time.Time) (*payments.Bill, error) {
	if req.PlanID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "port-in request has no plan")
	}
	plan, err := s.plans.WithTx(tx).FindByID(ctx, *req.PlanID)
	if err != nil {
		return nil, db.MapError(err, "plan")
	}

	numbers := s.msisdns.WithTx(tx)
	number, err := numbers.FindByNumber(ctx, req.PhoneNumber)
	switch {
	case err == nil:
		if number.Status != enums.MsisdnStatusAvailable {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "number is already in use on this network")
		}
		ok, err := numbers.UpdateAttributes(ctx, number.ID, map[string]any{
			"status":       enums.MsisdnStatusActive,
			"customer_id":  req.CustomerID,
			"activated_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "number changed concurrently")
		}
	case db.IsNotFound(err):
		number = &models.MsisdnInventory{
			PhoneNumber: req.PhoneNumber,
			Status:      enums.MsisdnStatusActive,
			Tier:        enums.MsisdnTierStandard,
			Region:      portedRegion,
			CustomerID:  &req.CustomerID,
			ActivatedAt: &now,
		}
		if err := numbers.Create(ctx, number); err != nil {
			return nil, db.MapError(err, "msisdn")
		}
	default:
		return nil, err
	}

	sub := &models.Subscription{
		CustomerID:          req.CustomerID,
		PlanID:              plan.ID,
		MsisdnID:            number.ID,
		PhoneNumber:         req.PhoneNumber,
		Status:              enums.SubscriptionStatusActive,
		StartDate:           now,
		EndDate:             now.AddDate(0, 0, plan.ValidityDays),
		DataBalanceMB:       plan.DataQuotaMB,
		VoiceBalanceMinutes: plan.VoiceQuotaMinutes,
		SMSBalance:          plan.SMSQuota,
	}
	if err := s.subs.WithTx(tx).Create(ctx, sub); err != nil {
		return nil, db.MapError(err, "subscription")
	}
	req.SubscriptionID = &sub.ID

	return s.payments.BillTx(ctx, tx, invoices.IssueInput{
		CustomerID:     req.CustomerID,
		SubscriptionID: &sub.ID,
		LineItems:      types.LineItems{{Description: fmt.Sprintf("%s (ported %s)", plan.Name, req.PhoneNumber), Amount: plan.PriceMinor, Quantity: 1}},
		Reason:         invoices.ReasonPortIn,
	})
}

func (s *service) completePortOut(ctx context.Context, tx *gorm.DB, req *models.PortingRequest, now time.Time) error {
	if req.SubscriptionID == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "port-out request has no subscription")
	}
	subs := s.subs.WithTx(tx)
	sub, err := subs.FindByID(ctx, *req.SubscriptionID)
	if err != nil {
		return db.MapError(err, "subscription")
	}
	if !sub.Status.CanTransitionTo(enums.SubscriptionStatusCancelled) {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "subscription is %s", sub.Status)
	}
	ok, err := subs.Transition(ctx, sub.ID, []enums.SubscriptionStatus{sub.Status}, map[string]any{
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
	_, err = s.msisdns.WithTx(tx).CoolDown(ctx, sub.MsisdnID, now, now.AddDate(0, 0, s.coolingDays))
	return err
}
