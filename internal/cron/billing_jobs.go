package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

// Job names double as Redis lock names and metric labels.
const (
	JobPaymentRetry       = "payment_retry"
	JobReservationSweep   = "reservation_sweep"
	JobMsisdnRecycle      = "msisdn_recycle"
	JobInvoiceOverdue     = "invoice_overdue"
	JobSubscriptionExpiry = "subscription_expiry"
	JobOutboxRetention    = "outbox_retention"
	JobNotificationPurge  = "notification_cleanup"
)

type paymentRetrier interface {
	RetryDue(ctx context.Context) (payments.RetryReport, error)
}

type reservationSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

type numberRecycler interface {
	RecycleCooled(ctx context.Context) (int64, error)
}

type overdueMarker interface {
	MarkOverdue(ctx context.Context) (int64, error)
}

type subscriptionExpirer interface {
	ExpireDue(ctx context.Context) (subscriptions.ExpiryReport, error)
}

// NewPaymentRetryJob retries due payment attempts. Per-attempt failures are reported
// together after the whole batch ran.
func NewPaymentRetryJob(logg *logger.Logger, svc paymentRetrier) (Job, error) {
	if logg == nil || svc == nil {
		return nil, fmt.Errorf("logger and payments service required")
	}
	return &paymentRetryJob{logg: logg, svc: svc}, nil
}

type paymentRetryJob struct {
	logg *logger.Logger
	svc  paymentRetrier
}

func (j *paymentRetryJob) Name() string { return JobPaymentRetry }

func (j *paymentRetryJob) Run(ctx context.Context) error {
	report, err := j.svc.RetryDue(ctx)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"processed": report.Processed,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"exhausted": report.Exhausted,
	}), "payment retry batch complete")
	if err != nil {
		return fmt.Errorf("payment retry: %w", err)
	}
	return nil
}

// NewReservationSweepJob releases MSISDN reservations whose TTL lapsed.
func NewReservationSweepJob(logg *logger.Logger, svc reservationSweeper) (Job, error) {
	if logg == nil || svc == nil {
		return nil, fmt.Errorf("logger and msisdn service required")
	}
	return &reservationSweepJob{logg: logg, svc: svc}, nil
}

type reservationSweepJob struct {
	logg *logger.Logger
	svc  reservationSweeper
}

func (j *reservationSweepJob) Name() string { return JobReservationSweep }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	released, err := j.svc.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("reservation sweep after %d releases: %w", released, err)
	}
	j.logg.Info(j.logg.WithField(ctx, "released", released), "reservation sweep complete")
	return nil
}

// NewMsisdnRecycleJob returns cooled-down numbers to the available pool.
func NewMsisdnRecycleJob(logg *logger.Logger, svc numberRecycler) (Job, error) {
	if logg == nil || svc == nil {
		return nil, fmt.Errorf("logger and msisdn service required")
	}
	return &msisdnRecycleJob{logg: logg, svc: svc}, nil
}

type msisdnRecycleJob struct {
	logg *logger.Logger
	svc  numberRecycler
}

func (j *msisdnRecycleJob) Name() string { return JobMsisdnRecycle }

func (j *msisdnRecycleJob) Run(ctx context.Context) error {
	recycled, err := j.svc.RecycleCooled(ctx)
	if err != nil {
		return fmt.Errorf("msisdn recycle: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "recycled", recycled), "msisdn recycle complete")
	return nil
}

// NewInvoiceOverdueJob flips pending invoices past their due date to overdue.
func NewInvoiceOverdueJob(logg *logger.Logger, svc overdueMarker) (Job, error) {
	if logg == nil || svc == nil {
		return nil, fmt.Errorf("logger and invoices service required")
	}
	return &invoiceOverdueJob{logg: logg, svc: svc}, nil
}

type invoiceOverdueJob struct {
	logg *logger.Logger
	svc  overdueMarker
}

func (j *invoiceOverdueJob) Name() string { return JobInvoiceOverdue }

func (j *invoiceOverdueJob) Run(ctx context.Context) error {
	marked, err := j.svc.MarkOverdue(ctx)
	if err != nil {
		return fmt.Errorf("invoice overdue: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "marked", marked), "invoice overdue sweep complete")
	return nil
}

// NewSubscriptionExpiryJob expires or renews subscriptions past their end date.
func NewSubscriptionExpiryJob(logg *logger.Logger, svc subscriptionExpirer) (Job, error) {
	if logg == nil || svc == nil {
		return nil, fmt.Errorf("logger and subscriptions service required")
	}
	return &subscriptionExpiryJob{logg: logg, svc: svc}, nil
}

type subscriptionExpiryJob struct {
	logg *logger.Logger
	svc  subscriptionExpirer
}

func (j *subscriptionExpiryJob) Name() string { return JobSubscriptionExpiry }

func (j *subscriptionExpiryJob) Run(ctx context.Context) error {
	report, err := j.svc.ExpireDue(ctx)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"expired": report.Expired,
		"renewed": report.Renewed,
	}), "subscription expiry complete")
	if err != nil {
		return fmt.Errorf("subscription expiry: %w", err)
	}
	return nil
}
