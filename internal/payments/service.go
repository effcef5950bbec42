package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/customers"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
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

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 24 * time.Hour
	retryBatchSize    = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SubscriptionLifecycle moves a subscription between active and suspended and queues the
// matching event. Both calls report false when the subscription was not in the source state.
type SubscriptionLifecycle interface {
	SuspendTx(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID, reason string) (bool, error)
	ReactivateTx(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID, reason string) (bool, error)
}

type invoiceIssuer interface {
	IssueTx(ctx context.Context, tx *gorm.DB, input invoices.IssueInput) (*models.Invoice, error)
	SettleTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error)
}

// Bill is an invoice issued inside a business transaction together with the attempt that
// will collect it. Attempt is nil for zero-total invoices, which are settled immediately.
type Bill struct {
	Invoice *models.Invoice
	Attempt *models.PaymentAttempt
}

// Service records, charges and retries invoice payments.
type Service interface {
	BillTx(ctx context.Context, tx *gorm.DB, input invoices.IssueInput) (*Bill, error)
	CollectBill(ctx context.Context, bill *Bill) *AttemptDTO
	RecordTx(ctx context.Context, tx *gorm.DB, invoice *models.Invoice) (*models.PaymentAttempt, error)
	Collect(ctx context.Context, attemptID uuid.UUID) (*AttemptDTO, error)
	PayInvoice(ctx context.Context, customerID, invoiceID uuid.UUID) (*AttemptDTO, error)
	RetryDue(ctx context.Context) (RetryReport, error)
	HandleGatewayEvent(ctx context.Context, event GatewayEvent) error
	AdminList(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[AttemptDTO], error)
}

type ServiceParams struct {
	Repo          *Repository
	Invoices      *invoices.Repository
	Issuer        invoiceIssuer
	Customers     *customers.Repository
	Tx            txRunner
	Outbox        outbox.Emitter
	Gateway       Gateway
	Subscriptions SubscriptionLifecycle
	Logger        *logger.Logger
	MaxRetries    int
	RetryDelay    time.Duration
	Now           func() time.Time
}

type service struct {
	repo       *Repository
	invoices   *invoices.Repository
	issuer     invoiceIssuer
	customers  *customers.Repository
	tx         txRunner
	outbox     outbox.Emitter
	gateway    Gateway
	subs       SubscriptionLifecycle
	logg       *logger.Logger
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("payment attempt repository required")
	case params.Invoices == nil:
		return nil, fmt.Errorf("invoice repository required")
	case params.Issuer == nil:
		return nil, fmt.Errorf("invoice issuer required")
	case params.Customers == nil:
		return nil, fmt.Errorf("customer repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case params.Subscriptions == nil:
		return nil, fmt.Errorf("subscription lifecycle required")
	}
	maxRetries := params.MaxRetries
	if maxRetries < 1 {
		maxRetries = defaultMaxRetries
	}
	delay := params.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
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
		repo:       params.Repo,
		invoices:   params.Invoices,
		issuer:     params.Issuer,
		customers:  params.Customers,
		tx:         params.Tx,
		outbox:     params.Outbox,
		gateway:    params.Gateway,
		subs:       params.Subscriptions,
		logg:       logg,
		maxRetries: maxRetries,
		retryDelay: delay,
		now:        now,
	}, nil
}

// BillTx issues the invoice and records its payment attempt in the caller's transaction.
func (s *service) BillTx(ctx context.Context, tx *gorm.DB, input invoices.IssueInput) (*Bill, error) {
	invoice, err := s.issuer.IssueTx(ctx, tx, input)
	if err != nil {
		return nil, err
	}
	if invoice.TotalMinor == 0 {
		now := s.now()
		if _, err := s.issuer.SettleTx(ctx, tx, invoice.ID, now); err != nil {
			return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "settle zero invoice")
		}
		invoice.Status = enums.InvoiceStatusPaid
		invoice.PaidAt = &now
		return &Bill{Invoice: invoice}, nil
	}
	attempt, err := s.RecordTx(ctx, tx, invoice)
	if err != nil {
		return nil, err
	}
	return &Bill{Invoice: invoice, Attempt: attempt}, nil
}

// CollectBill charges a committed bill. Failures stay on the attempt for the retry job, so
// this only logs errors.
func (s *service) CollectBill(ctx context.Context, bill *Bill) *AttemptDTO {
	if bill == nil || bill.Attempt == nil {
		return nil
	}
	result, err := s.Collect(ctx, bill.Attempt.ID)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "attempt_id", bill.Attempt.ID.String()), "post-commit collection failed", err)
		return FromModel(bill.Attempt)
	}
	return result
}

// RecordTx creates a pending attempt for the invoice in the caller's transaction. The
// charge itself runs after commit through Collect.
func (s *service) RecordTx(ctx context.Context, tx *gorm.DB, invoice *models.Invoice) (*models.PaymentAttempt, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if invoice == nil || invoice.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice required")
	}
	attempt := &models.PaymentAttempt{
		InvoiceID:      invoice.ID,
		CustomerID:     invoice.CustomerID,
		SubscriptionID: invoice.SubscriptionID,
		AmountMinor:    invoice.TotalMinor,
		MaxRetries:     s.maxRetries,
		Status:         enums.PaymentAttemptPending,
		CreatedAt:      s.now(),
	}
	if err := s.repo.WithTx(tx).Create(ctx, attempt); err != nil {
		return nil, db.MapError(err, "payment attempt")
	}
	return attempt, nil
}

// Collect charges a pending or failed attempt once and records the outcome. Declines and
// gateway errors are both stored on the attempt and do not surface as errors.
func (s *service) Collect(ctx context.Context, attemptID uuid.UUID) (*AttemptDTO, error) {
	return s.collect(ctx, attemptID, s.now())
}

// collect schedules any retry relative to startedAt, which is taken before the gateway
// call so slow charges do not push the next retry past the daily run.
func (s *service) collect(ctx context.Context, attemptID uuid.UUID, startedAt time.Time) (*AttemptDTO, error) {
	attempt, err := s.repo.FindByID(ctx, attemptID)
	if err != nil {
		return nil, db.MapError(err, "payment attempt")
	}
	if !attempt.Status.Retryable() {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment attempt is %s", attempt.Status)
	}

	invoice, err := s.invoices.FindByID(ctx, attempt.InvoiceID)
	if err != nil {
		return nil, db.MapError(err, "invoice")
	}
	if invoice.Status != enums.InvoiceStatusPending && invoice.Status != enums.InvoiceStatusOverdue {
		return s.closeStale(ctx, attempt, invoice.Status)
	}

	customer, err := s.customers.FindByID(ctx, attempt.CustomerID)
	if err != nil {
		return nil, db.MapError(err, "customer")
	}

	next := attempt.AttemptNumber + 1
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"attempt_id":     attempt.ID.String(),
		"invoice_id":     attempt.InvoiceID.String(),
		"attempt_number": next,
	})
	outcome, err := s.gateway.Charge(ctx, ChargeRequest{
		AttemptID:       attempt.ID,
		InvoiceID:       attempt.InvoiceID,
		CustomerRef:     deref(customer.StripeCustomerID),
		PaymentMethodID: deref(customer.DefaultPaymentMethodID),
		AmountMinor:     attempt.AmountMinor,
		IdempotencyKey:  fmt.Sprintf("attempt_%s_%d", attempt.ID, next),
	})
	if err != nil {
		s.logg.Error(logCtx, "payment gateway call failed", err)
		outcome = ChargeOutcome{FailureReason: "gateway error: " + err.Error()}
	}

	updated, err := s.applyOutcome(ctx, attempt, outcome, retryableStatuses, next, startedAt)
	if err != nil {
		return nil, err
	}
	if updated.Status == enums.PaymentAttemptSucceeded {
		s.logg.Info(logCtx, "payment collected")
	} else {
		s.logg.Warn(logCtx, "payment declined")
	}
	return FromModel(updated), nil
}

// PayInvoice charges an open invoice on demand. A decline is returned as PAYMENT_FAILED
// with the attempt in the details.
func (s *service) PayInvoice(ctx context.Context, customerID, invoiceID uuid.UUID) (*AttemptDTO, error) {
	invoice, err := s.invoices.FindForCustomer(ctx, customerID, invoiceID)
	if err != nil {
		return nil, db.MapError(err, "invoice")
	}
	if invoice.Status != enums.InvoiceStatusPending && invoice.Status != enums.InvoiceStatusOverdue {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "invoice is %s", invoice.Status)
	}

	var attemptID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		open, err := s.repo.WithTx(tx).FindOpenForInvoice(ctx, invoice.ID)
		if err == nil {
			attemptID = open.ID
			return nil
		}
		if !db.IsNotFound(err) {
			return err
		}
		created, err := s.RecordTx(ctx, tx, invoice)
		if err != nil {
			return err
		}
		attemptID = created.ID
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "prepare payment attempt")
	}

	result, err := s.Collect(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if result.Status != enums.PaymentAttemptSucceeded {
		return nil, pkgerrors.New(pkgerrors.CodePaymentFailed, "payment declined").WithDetails(result)
	}
	return result, nil
}

// RetryDue charges every due attempt. One failing attempt never stops the batch; errors
// are combined and returned with the report.
func (s *service) RetryDue(ctx context.Context) (RetryReport, error) {
	var report RetryReport
	startedAt := s.now()
	due, err := s.repo.ListDue(ctx, startedAt, retryBatchSize)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load due payment attempts")
	}

	var errs error
	for _, attempt := range due {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		report.Processed++
		result, err := s.collect(ctx, attempt.ID, startedAt)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("attempt %s: %w", attempt.ID, err))
			continue
		}
		switch result.Status {
		case enums.PaymentAttemptSucceeded:
			report.Succeeded++
		case enums.PaymentAttemptExhausted:
			report.Exhausted++
		default:
			report.Failed++
		}
	}
	return report, errs
}

// HandleGatewayEvent applies an asynchronous result. Successes settle any unsettled
// attempt. Failures only count when no synchronous outcome was recorded yet.
func (s *service) HandleGatewayEvent(ctx context.Context, event GatewayEvent) error {
	attempt, err := s.findForEvent(ctx, event)
	if err != nil {
		if db.IsNotFound(err) {
			s.logg.Warn(s.logg.WithField(ctx, "gateway_reference", event.Reference), "webhook for unknown payment attempt ignored")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}

	outcome := ChargeOutcome{Reference: event.Reference, Succeeded: event.Succeeded, FailureReason: event.FailureReason}
	switch {
	case attempt.Status == enums.PaymentAttemptSucceeded:
		return nil
	case event.Succeeded:
		next := attempt.AttemptNumber
		if attempt.Status == enums.PaymentAttemptPending {
			next++
		}
		from := []enums.PaymentAttemptStatus{enums.PaymentAttemptPending, enums.PaymentAttemptFailed, enums.PaymentAttemptExhausted}
		_, err = s.applyOutcome(ctx, attempt, outcome, from, next, s.now())
	case attempt.Status == enums.PaymentAttemptPending:
		_, err = s.applyOutcome(ctx, attempt, outcome, []enums.PaymentAttemptStatus{enums.PaymentAttemptPending}, attempt.AttemptNumber+1, s.now())
	}
	return err
}

func (s *service) AdminList(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[AttemptDTO], error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return types.Page[AttemptDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment attempt status")
	}
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return types.Page[AttemptDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment attempts")
	}
	items := make([]AttemptDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	return types.Page[AttemptDTO]{Items: items, Limit: page.Limit, Offset: page.Offset, Total: total}, nil
}

func (s *service) findForEvent(ctx context.Context, event GatewayEvent) (*models.PaymentAttempt, error) {
	if id, err := uuid.Parse(event.AttemptID); err == nil {
		return s.repo.FindByID(ctx, id)
	}
	if event.Reference == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return s.repo.FindByGatewayReference(ctx, event.Reference)
}

// applyOutcome writes the attempt result, settles or suspends, and queues events in one
// transaction. A lost race returns the row as the winner left it. Retries are due
// retryDelay after startedAt, truncated to the minute to line up with cron schedules.
func (s *service) applyOutcome(ctx context.Context, attempt *models.PaymentAttempt, outcome ChargeOutcome, from []enums.PaymentAttemptStatus, nextNumber int, startedAt time.Time) (*models.PaymentAttempt, error) {
	now := s.now()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updates := map[string]any{
			"attempt_number":    nextNumber,
			"last_attempted_at": now,
			"updated_at":        now,
		}
		if outcome.Reference != "" {
			updates["gateway_reference"] = outcome.Reference
		}

		if outcome.Succeeded {
			updates["status"] = enums.PaymentAttemptSucceeded
			updates["next_retry_at"] = nil
			updates["failure_reason"] = nil
			ok, err := repo.ApplyOutcome(ctx, attempt.ID, from, attempt.AttemptNumber, updates)
			if err != nil || !ok {
				return err
			}
			return s.settleTx(ctx, tx, attempt, outcome, now)
		}

		reason := outcome.FailureReason
		if reason == "" {
			reason = "payment declined"
		}
		exhausted := nextNumber >= attempt.MaxRetries
		var nextRetry *time.Time
		if exhausted {
			updates["status"] = enums.PaymentAttemptExhausted
			updates["next_retry_at"] = nil
		} else {
			retryAt := startedAt.Add(s.retryDelay).Truncate(time.Minute)
			nextRetry = &retryAt
			updates["status"] = enums.PaymentAttemptFailed
			updates["next_retry_at"] = retryAt
		}
		updates["failure_reason"] = reason
		ok, err := repo.ApplyOutcome(ctx, attempt.ID, from, attempt.AttemptNumber, updates)
		if err != nil || !ok {
			return err
		}

		if exhausted && attempt.SubscriptionID != nil {
			if _, err := s.subs.SuspendTx(ctx, tx, *attempt.SubscriptionID, "payment retries exhausted"); err != nil {
				return err
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePaymentAttempt,
			AggregateID:   attempt.ID,
			OccurredAt:    now,
			Data: payloads.PaymentFailedEvent{
				AttemptID:     attempt.ID,
				InvoiceID:     attempt.InvoiceID,
				CustomerID:    attempt.CustomerID,
				AmountMinor:   attempt.AmountMinor,
				AttemptNumber: nextNumber,
				MaxRetries:    attempt.MaxRetries,
				Reason:        reason,
				NextRetryAt:   nextRetry,
				Exhausted:     exhausted,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "record payment outcome")
	}
	updated, err := s.repo.FindByID(ctx, attempt.ID)
	if err != nil {
		return nil, db.MapError(err, "payment attempt")
	}
	return updated, nil
}

func (s *service) settleTx(ctx context.Context, tx *gorm.DB, attempt *models.PaymentAttempt, outcome ChargeOutcome, now time.Time) error {
	if _, err := s.issuer.SettleTx(ctx, tx, attempt.InvoiceID, now); err != nil {
		return err
	}
	if attempt.SubscriptionID != nil {
		if _, err := s.subs.ReactivateTx(ctx, tx, *attempt.SubscriptionID, "payment settled"); err != nil {
			return err
		}
	}
	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentSettled,
		AggregateType: enums.AggregatePaymentAttempt,
		AggregateID:   attempt.ID,
		OccurredAt:    now,
		Data: payloads.PaymentSettledEvent{
			AttemptID:        attempt.ID,
			InvoiceID:        attempt.InvoiceID,
			CustomerID:       attempt.CustomerID,
			SubscriptionID:   attempt.SubscriptionID,
			AmountMinor:      attempt.AmountMinor,
			GatewayReference: outcome.Reference,
			SettledAt:        now,
		},
	})
}

// closeStale retires an attempt whose invoice was paid or cancelled elsewhere.
func (s *service) closeStale(ctx context.Context, attempt *models.PaymentAttempt, invoiceStatus enums.InvoiceStatus) (*AttemptDTO, error) {
	reason := fmt.Sprintf("invoice %s before collection", invoiceStatus)
	_, err := s.repo.ApplyOutcome(ctx, attempt.ID, retryableStatuses, attempt.AttemptNumber, map[string]any{
		"status":         enums.PaymentAttemptExhausted,
		"next_retry_at":  nil,
		"failure_reason": reason,
		"updated_at":     s.now(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close payment attempt")
	}
	updated, err := s.repo.FindByID(ctx, attempt.ID)
	if err != nil {
		return nil, db.MapError(err, "payment attempt")
	}
	return FromModel(updated), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
