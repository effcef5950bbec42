package devicecontracts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/billing"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CoverageCanceller ends insurance attached to a contract inside the caller's transaction.
type CoverageCanceller interface {
	CancelForContractTx(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) error
}

type Service interface {
	Quote(price, down int64, count int) (*QuoteDTO, error)
	Create(ctx context.Context, customerID uuid.UUID, input CreateInput) (*ContractResult, error)
	List(ctx context.Context, customerID uuid.UUID, status *enums.DeviceContractStatus, page pagination.Params) (types.Page[ContractDTO], error)
	Get(ctx context.Context, customerID, id uuid.UUID) (*ContractDTO, error)
	PayInstallment(ctx context.Context, customerID, id uuid.UUID) (*ContractResult, error)
	TerminationQuote(ctx context.Context, customerID, id uuid.UUID) (*TerminationQuoteDTO, error)
	Terminate(ctx context.Context, customerID, id uuid.UUID) (*ContractResult, error)
}

type ServiceParams struct {
	Repo          *Repository
	Invoices      *invoices.Repository
	Subscriptions *subscriptions.Repository
	Payments      payments.Service
	Coverage      CoverageCanceller
	Tx            txRunner
	Outbox        outbox.Emitter
	Now           func() time.Time
}

type service struct {
	repo     *Repository
	invoices *invoices.Repository
	subs     *subscriptions.Repository
	payments payments.Service
	coverage CoverageCanceller
	tx       txRunner
	outbox   outbox.Emitter
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("device contract repository required")
	case params.Invoices == nil:
		return nil, fmt.Errorf("invoice repository required")
	case params.Subscriptions == nil:
		return nil, fmt.Errorf("subscription repository required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payments service required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		invoices: params.Invoices,
		subs:     params.Subscriptions,
		payments: params.Payments,
		coverage: params.Coverage,
		tx:       params.Tx,
		outbox:   params.Outbox,
		now:      now,
	}, nil
}

func (s *service) Quote(price, down int64, count int) (*QuoteDTO, error) {
	plan, err := billing.CalculateInstallment(price, down, count)
	if err != nil {
		return nil, err
	}
	return &QuoteDTO{
		Installment:      plan,
		FirstPaymentDate: billing.NextPaymentDate(s.now()),
		TotalPayable:     down + plan.Principal,
	}, nil
}

// Create opens a financing contract. A non-zero down payment is invoiced and charged in
// the same flow as other purchases.
func (s *service) Create(ctx context.Context, customerID uuid.UUID, input CreateInput) (*ContractResult, error) {
	input.DeviceName = strings.TrimSpace(input.DeviceName)
	if input.DeviceName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device name is required")
	}
	if input.DevicePriceMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device price must be positive")
	}
	plan, err := billing.CalculateInstallment(input.DevicePriceMinor, input.DownPaymentMinor, input.InstallmentCount)
	if err != nil {
		return nil, err
	}

	var (
		contract *models.DeviceContract
		bill     *payments.Bill
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if input.SubscriptionID != nil {
			if _, err := s.subs.WithTx(tx).FindForCustomer(ctx, customerID, *input.SubscriptionID); err != nil {
				return db.MapError(err, "subscription")
			}
		}
		now := s.now()
		next := billing.NextPaymentDate(now)
		contract = &models.DeviceContract{
			CustomerID:               customerID,
			SubscriptionID:           input.SubscriptionID,
			DeviceName:               input.DeviceName,
			DevicePriceMinor:         input.DevicePriceMinor,
			DownPaymentMinor:         input.DownPaymentMinor,
			InstallmentAmountMinor:   plan.InstallmentAmount,
			InstallmentCount:         plan.InstallmentCount,
			EarlyTerminationFeeMinor: plan.EarlyTerminationFee,
			NextPaymentDate:          &next,
			Status:                   enums.DeviceContractActive,
			CreatedAt:                now,
		}
		if err := s.repo.WithTx(tx).Create(ctx, contract); err != nil {
			return db.MapError(err, "device contract")
		}

		if input.DownPaymentMinor > 0 {
			var err error
			bill, err = s.payments.BillTx(ctx, tx, invoices.IssueInput{
				CustomerID:     customerID,
				SubscriptionID: input.SubscriptionID,
				LineItems:      types.LineItems{{Description: "Down payment: " + contract.DeviceName, Amount: input.DownPaymentMinor, Quantity: 1}},
				Reason:         invoices.ReasonDownPayment,
			})
			if err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventContractCreated,
			AggregateType: enums.AggregateDeviceContract,
			AggregateID:   contract.ID,
			OccurredAt:    now,
			Data: payloads.ContractCreatedEvent{
				ContractID:             contract.ID,
				CustomerID:             customerID,
				DeviceName:             contract.DeviceName,
				DevicePriceMinor:       contract.DevicePriceMinor,
				DownPaymentMinor:       contract.DownPaymentMinor,
				InstallmentAmountMinor: contract.InstallmentAmountMinor,
				InstallmentCount:       contract.InstallmentCount,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "create device contract")
	}
	return s.collect(ctx, contract.ID, bill)
}

func (s *service) List(ctx context.Context, customerID uuid.UUID, status *enums.DeviceContractStatus, page pagination.Params) (types.Page[ContractDTO], error) {
	if status != nil && !status.IsValid() {
		return types.Page[ContractDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid contract status")
	}
	page = page.Normalize()
	rows, total, err := s.repo.ListForCustomer(ctx, customerID, status, page)
	if err != nil {
		return types.Page[ContractDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list device contracts")
	}
	items := make([]ContractDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	return types.Page[ContractDTO]{Items: items, Limit: page.Limit, Offset: page.Offset, Total: total}, nil
}

func (s *service) Get(ctx context.Context, customerID, id uuid.UUID) (*ContractDTO, error) {
	contract, err := s.repo.FindForCustomer(ctx, customerID, id)
	if err != nil {
		return nil, db.MapError(err, "device contract")
	}
	return FromModel(contract), nil
}

// PayInstallment bills the next installment. The installment only counts once its
// invoice settles, through InstallmentLedger. The final one absorbs the rounding so the
// installments sum to exactly the financed principal.
func (s *service) PayInstallment(ctx context.Context, customerID, id uuid.UUID) (*ContractResult, error) {
	var bill *payments.Bill
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contract, err := repo.FindForCustomer(ctx, customerID, id)
		if err != nil {
			return db.MapError(err, "device contract")
		}
		if contract.Status != enums.DeviceContractActive {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "contract is %s", contract.Status)
		}
		if err := s.checkPendingInvoice(ctx, tx, contract); err != nil {
			return err
		}

		number := contract.InstallmentsPaid + 1
		bill, err = s.payments.BillTx(ctx, tx, invoices.IssueInput{
			CustomerID:     customerID,
			SubscriptionID: contract.SubscriptionID,
			LineItems: types.LineItems{{
				Description: fmt.Sprintf("%s installment %d of %d", contract.DeviceName, number, contract.InstallmentCount),
				Amount:      installmentDue(contract, number),
				Quantity:    1,
			}},
			Reason: invoices.ReasonInstallment,
		})
		if err != nil {
			return err
		}

		updates := map[string]any{"pending_invoice_id": bill.Invoice.ID, "updated_at": s.now()}
		if bill.Invoice.Status == enums.InvoiceStatusPaid {
			updates = installmentSettled(contract, s.now())
		}
		ok, err := repo.RecordInstallment(ctx, contract.ID, contract.InstallmentsPaid, nil, updates)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "installment already billed")
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "pay installment")
	}
	return s.collect(ctx, id, bill)
}

// checkPendingInvoice refuses a new installment while the previous one is still open.
// A cancelled installment invoice is dropped so the installment can be billed again.
func (s *service) checkPendingInvoice(ctx context.Context, tx *gorm.DB, contract *models.DeviceContract) error {
	if contract.PendingInvoiceID == nil {
		return nil
	}
	invoice, err := s.invoices.WithTx(tx).FindByID(ctx, *contract.PendingInvoiceID)
	if err != nil && !db.IsNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load installment invoice")
	}
	if invoice != nil && (invoice.Status == enums.InvoiceStatusPending || invoice.Status == enums.InvoiceStatusOverdue) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "previous installment is awaiting payment").
			WithDetails(map[string]any{"invoice_id": invoice.ID})
	}
	ok, err := s.repo.WithTx(tx).RecordInstallment(ctx, contract.ID, contract.InstallmentsPaid, contract.PendingInvoiceID,
		map[string]any{"pending_invoice_id": nil, "updated_at": s.now()})
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "contract changed concurrently")
	}
	contract.PendingInvoiceID = nil
	return nil
}

// installmentSettled counts one more paid installment and either schedules the next one
// or completes the contract.
func installmentSettled(contract *models.DeviceContract, now time.Time) map[string]any {
	paid := contract.InstallmentsPaid + 1
	updates := map[string]any{"installments_paid": paid, "pending_invoice_id": nil, "updated_at": now}
	if paid >= contract.InstallmentCount {
		updates["status"] = enums.DeviceContractCompleted
		updates["next_payment_date"] = nil
		return updates
	}
	base := now
	if contract.NextPaymentDate != nil {
		base = *contract.NextPaymentDate
	}
	updates["next_payment_date"] = billing.NextPaymentDate(base)
	return updates
}

// InstallmentLedger advances a contract when its installment invoice is paid, whether by
// the gateway, a webhook or an admin.
type InstallmentLedger struct {
	repo *Repository
}

func NewInstallmentLedger(repo *Repository) *InstallmentLedger {
	return &InstallmentLedger{repo: repo}
}

func (l *InstallmentLedger) InvoiceSettledTx(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, at time.Time) error {
	repo := l.repo.WithTx(tx)
	contract, err := repo.FindByPendingInvoice(ctx, invoiceID)
	if db.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device contract")
	}
	ok, err := repo.RecordInstallment(ctx, contract.ID, contract.InstallmentsPaid, &invoiceID, installmentSettled(contract, at))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record installment")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "device contract changed concurrently")
	}
	return nil
}

func installmentDue(contract *models.DeviceContract, number int) int64 {
	if number < contract.InstallmentCount {
		return contract.InstallmentAmountMinor
	}
	principal := contract.DevicePriceMinor - contract.DownPaymentMinor
	last := principal - contract.InstallmentAmountMinor*int64(contract.InstallmentCount-1)
	if last < 0 {
		return 0
	}
	return last
}

func (s *service) TerminationQuote(ctx context.Context, customerID, id uuid.UUID) (*TerminationQuoteDTO, error) {
	contract, err := s.repo.FindForCustomer(ctx, customerID, id)
	if err != nil {
		return nil, db.MapError(err, "device contract")
	}
	if contract.Status != enums.DeviceContractActive {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "contract is %s", contract.Status)
	}
	return &TerminationQuoteDTO{
		ContractID:            contract.ID,
		RemainingInstallments: contract.RemainingInstallments(),
		AmountDue:             terminationAmount(contract),
	}, nil
}

func terminationAmount(contract *models.DeviceContract) int64 {
	return billing.EarlyTerminationQuote(billing.Installment{
		Principal:           contract.DevicePriceMinor - contract.DownPaymentMinor,
		InstallmentAmount:   contract.InstallmentAmountMinor,
		InstallmentCount:    contract.InstallmentCount,
		EarlyTerminationFee: contract.EarlyTerminationFeeMinor,
	}, contract.InstallmentsPaid)
}

// Terminate closes an active contract early. The quoted fee is invoiced and any insurance
// on the device is cancelled in the same transaction.
func (s *service) Terminate(ctx context.Context, customerID, id uuid.UUID) (*ContractResult, error) {
	var bill *payments.Bill
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contract, err := repo.FindForCustomer(ctx, customerID, id)
		if err != nil {
			return db.MapError(err, "device contract")
		}
		if contract.Status != enums.DeviceContractActive {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "contract is %s", contract.Status)
		}
		now := s.now()
		ok, err := repo.Transition(ctx, contract.ID, enums.DeviceContractActive, map[string]any{
			"status":             enums.DeviceContractTerminated,
			"terminated_at":      now,
			"next_payment_date":  nil,
			"pending_invoice_id": nil,
			"updated_at":         now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "contract changed concurrently")
		}
		if contract.PendingInvoiceID != nil {
			open := []enums.InvoiceStatus{enums.InvoiceStatusPending, enums.InvoiceStatusOverdue}
			if _, err := s.invoices.WithTx(tx).TransitionStatus(ctx, *contract.PendingInvoiceID, open, enums.InvoiceStatusCancelled, nil); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel installment invoice")
			}
		}
		if s.coverage != nil {
			if err := s.coverage.CancelForContractTx(ctx, tx, contract.ID); err != nil {
				return err
			}
		}

		if fee := terminationAmount(contract); fee > 0 {
			bill, err = s.payments.BillTx(ctx, tx, invoices.IssueInput{
				CustomerID:     customerID,
				SubscriptionID: contract.SubscriptionID,
				LineItems: types.LineItems{{
					Description: fmt.Sprintf("Early termination: %s (%d installments left)", contract.DeviceName, contract.RemainingInstallments()),
					Amount:      fee,
					Quantity:    1,
				}},
				Reason: invoices.ReasonTermination,
			})
		}
		return err
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "terminate device contract")
	}
	return s.collect(ctx, id, bill)
}

func (s *service) collect(ctx context.Context, contractID uuid.UUID, bill *payments.Bill) (*ContractResult, error) {
	result := &ContractResult{}
	if bill != nil {
		result.Payment = s.payments.CollectBill(ctx, bill)
		result.Invoice = invoices.FromModel(bill.Invoice)
		if result.Payment != nil && result.Payment.Status == enums.PaymentAttemptSucceeded {
			result.Invoice.Status = enums.InvoiceStatusPaid
		}
	}
	contract, err := s.repo.FindByID(ctx, contractID)
	if err != nil {
		return nil, db.MapError(err, "device contract")
	}
	result.Contract = FromModel(contract)
	return result, nil
}
