package invoices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/billing"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

// Reasons recorded on invoice_created events.
const (
	ReasonSimOrder        = "sim_order"
	ReasonRecharge        = "recharge"
	ReasonTopUp           = "top_up"
	ReasonPlanChange      = "plan_change"
	ReasonRenewal         = "renewal"
	ReasonDownPayment     = "device_down_payment"
	ReasonInstallment     = "device_installment"
	ReasonTermination     = "device_early_termination"
	ReasonInsurance       = "device_insurance"
	ReasonRoaming         = "roaming"
	ReasonCorporate       = "corporate_consolidated"
	ReasonPortIn          = "port_in"
	defaultInvoiceDueDays = 7
)

// CreditLineDescription labels the negative line that spends a customer's credit balance.
const CreditLineDescription = "Account credit applied"

// IssueInput describes an invoice to create inside a caller's transaction.
type IssueInput struct {
	CustomerID     uuid.UUID
	SubscriptionID *uuid.UUID
	LineItems      types.LineItems
	Reason         string
}

// CreditLedger draws down stored customer credit, such as downgrade refunds.
type CreditLedger interface {
	ConsumeCreditTx(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, limit int64) (int64, error)
}

// SettlementHook runs inside the transaction that marks an invoice paid.
type SettlementHook interface {
	InvoiceSettledTx(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, at time.Time) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service issues invoices and serves them to customers and admins.
type Service interface {
	IssueTx(ctx context.Context, tx *gorm.DB, input IssueInput) (*models.Invoice, error)
	SettleTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error)

	ListForCustomer(ctx context.Context, customerID uuid.UUID, status *enums.InvoiceStatus, page pagination.Params) (types.Page[InvoiceDTO], error)
	GetForCustomer(ctx context.Context, customerID, id uuid.UUID) (*InvoiceDTO, error)

	AdminList(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[InvoiceDTO], error)
	AdminGet(ctx context.Context, id uuid.UUID) (*InvoiceDTO, error)
	Cancel(ctx context.Context, id uuid.UUID) (*InvoiceDTO, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (*InvoiceDTO, error)

	MarkOverdue(ctx context.Context) (int64, error)
}

type ServiceParams struct {
	Repo    *Repository
	Tx      txRunner
	Outbox  outbox.Emitter
	Credits CreditLedger
	Hooks   []SettlementHook
	DueDays int
	Now     func() time.Time
}

type service struct {
	repo    *Repository
	tx      txRunner
	outbox  outbox.Emitter
	credits CreditLedger
	hooks   []SettlementHook
	dueDays int
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	dueDays := params.DueDays
	if dueDays <= 0 {
		dueDays = defaultInvoiceDueDays
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		credits: params.Credits,
		hooks:   params.Hooks,
		dueDays: dueDays,
		now:     now,
	}, nil
}

// IssueTx computes totals with the tax calculator, persists the invoice as pending and
// queues invoice_created in the same transaction. Available customer credit is spent
// against the subtotal before tax.
func (s *service) IssueTx(ctx context.Context, tx *gorm.DB, input IssueInput) (*models.Invoice, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if len(input.LineItems) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice needs at least one line item")
	}
	for _, item := range input.LineItems {
		if strings.TrimSpace(item.Description) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item description required")
		}
	}

	items, err := s.applyCredit(ctx, tx, input.CustomerID, input.LineItems)
	if err != nil {
		return nil, err
	}
	totals := billing.CalculateInvoiceTotals(items)
	if totals.Total < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice total cannot be negative")
	}

	now := s.now()
	inv := &models.Invoice{
		InvoiceNumber:  NewInvoiceNumber(now),
		CustomerID:     input.CustomerID,
		SubscriptionID: input.SubscriptionID,
		SubtotalMinor:  totals.Subtotal,
		TaxMinor:       totals.Tax,
		TotalMinor:     totals.Total,
		Status:         enums.InvoiceStatusPending,
		LineItems:      items,
		DueDate:        now.AddDate(0, 0, s.dueDays),
		CreatedAt:      now,
	}
	if err := s.repo.WithTx(tx).Create(ctx, inv); err != nil {
		return nil, db.MapError(err, "invoice")
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInvoiceCreated,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   inv.ID,
		OccurredAt:    now,
		Data: payloads.InvoiceCreatedEvent{
			InvoiceID:      inv.ID,
			InvoiceNumber:  inv.InvoiceNumber,
			CustomerID:     inv.CustomerID,
			SubscriptionID: inv.SubscriptionID,
			SubtotalMinor:  inv.SubtotalMinor,
			TaxMinor:       inv.TaxMinor,
			TotalMinor:     inv.TotalMinor,
			DueDate:        inv.DueDate,
			Reason:         input.Reason,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue invoice_created")
	}
	return inv, nil
}

func (s *service) applyCredit(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, items types.LineItems) (types.LineItems, error) {
	if s.credits == nil {
		return items, nil
	}
	subtotal := billing.CalculateInvoiceTotals(items).Subtotal
	used, err := s.credits.ConsumeCreditTx(ctx, tx, customerID, subtotal)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply account credit")
	}
	if used == 0 {
		return items, nil
	}
	out := make(types.LineItems, 0, len(items)+1)
	out = append(out, items...)
	return append(out, types.LineItem{Description: CreditLineDescription, Amount: -used, Quantity: 1}), nil
}

// SettleTx marks an open invoice paid and runs the settlement hooks. It reports false,
// without running hooks, when the invoice was not open.
func (s *service) SettleTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	open := []enums.InvoiceStatus{enums.InvoiceStatusPending, enums.InvoiceStatusOverdue}
	ok, err := s.repo.WithTx(tx).TransitionStatus(ctx, id, open, enums.InvoiceStatusPaid, &at)
	if err != nil || !ok {
		return false, err
	}
	for _, hook := range s.hooks {
		if err := hook.InvoiceSettledTx(ctx, tx, id, at); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, status *enums.InvoiceStatus, page pagination.Params) (types.Page[InvoiceDTO], error) {
	return s.AdminList(ctx, ListFilter{CustomerID: &customerID, Status: status}, page)
}

func (s *service) GetForCustomer(ctx context.Context, customerID, id uuid.UUID) (*InvoiceDTO, error) {
	inv, err := s.repo.FindForCustomer(ctx, customerID, id)
	if err != nil {
		return nil, db.MapError(err, "invoice")
	}
	return FromModel(inv), nil
}

func (s *service) AdminList(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[InvoiceDTO], error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return types.Page[InvoiceDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid invoice status")
	}
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return types.Page[InvoiceDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	return types.Page[InvoiceDTO]{Items: fromModels(rows), Limit: page.Limit, Offset: page.Offset, Total: total}, nil
}

func (s *service) AdminGet(ctx context.Context, id uuid.UUID) (*InvoiceDTO, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "invoice")
	}
	return FromModel(inv), nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*InvoiceDTO, error) {
	return s.transition(ctx, id, []enums.InvoiceStatus{enums.InvoiceStatusDraft, enums.InvoiceStatusPending, enums.InvoiceStatusOverdue}, enums.InvoiceStatusCancelled, nil)
}

// MarkPaid settles an invoice collected outside the gateway.
func (s *service) MarkPaid(ctx context.Context, id uuid.UUID) (*InvoiceDTO, error) {
	var settled bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		settled, err = s.SettleTx(ctx, tx, id, s.now())
		return err
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "settle invoice")
	}
	if !settled {
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, db.MapError(err, "invoice")
		}
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "invoice is %s", current.Status)
	}
	return s.AdminGet(ctx, id)
}

func (s *service) transition(ctx context.Context, id uuid.UUID, from []enums.InvoiceStatus, to enums.InvoiceStatus, paidAt *time.Time) (*InvoiceDTO, error) {
	ok, err := s.repo.TransitionStatus(ctx, id, from, to, paidAt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice")
	}
	if !ok {
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, db.MapError(err, "invoice")
		}
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "invoice is %s", current.Status)
	}
	return s.AdminGet(ctx, id)
}

func (s *service) MarkOverdue(ctx context.Context) (int64, error) {
	n, err := s.repo.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark overdue invoices")
	}
	return n, nil
}

// NewInvoiceNumber formats INV-YYYYMM-XXXXXXXX with a random suffix.
func NewInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("200601"), suffix)
}
