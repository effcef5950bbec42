package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// Repository loads the raw rows the reports reduce in memory.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) InvoicesSince(ctx context.Context, since time.Time) ([]models.Invoice, error) {
	var rows []models.Invoice
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND status NOT IN ?", since, []enums.InvoiceStatus{enums.InvoiceStatusDraft, enums.InvoiceStatusCancelled}).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) OpenInvoices(ctx context.Context, customerID *uuid.UUID) ([]models.Invoice, error) {
	query := r.db.WithContext(ctx).
		Where("status IN ?", []enums.InvoiceStatus{enums.InvoiceStatusPending, enums.InvoiceStatusOverdue})
	if customerID != nil {
		query = query.Where("customer_id = ?", *customerID)
	}
	var rows []models.Invoice
	err := query.Find(&rows).Error
	return rows, err
}

func (r *Repository) CountCustomers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CustomerProfile{}).Count(&count).Error
	return count, err
}

func (r *Repository) FindCustomer(ctx context.Context, id uuid.UUID) (*models.CustomerProfile, error) {
	var customer models.CustomerProfile
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// Subscriptions returns every subscription, or only the customer's when customerID is set.
func (r *Repository) Subscriptions(ctx context.Context, customerID *uuid.UUID) ([]models.Subscription, error) {
	query := r.db.WithContext(ctx).Order("created_at ASC")
	if customerID != nil {
		query = query.Where("customer_id = ?", *customerID)
	}
	var rows []models.Subscription
	err := query.Find(&rows).Error
	return rows, err
}

func (r *Repository) Plans(ctx context.Context) ([]models.PlanConfiguration, error) {
	var rows []models.PlanConfiguration
	err := r.db.WithContext(ctx).Find(&rows).Error
	return rows, err
}

func (r *Repository) MsisdnStatuses(ctx context.Context) ([]enums.MsisdnStatus, error) {
	var statuses []enums.MsisdnStatus
	err := r.db.WithContext(ctx).Model(&models.MsisdnInventory{}).Pluck("status", &statuses).Error
	return statuses, err
}

// SettledPayments returns succeeded attempts, optionally for one customer.
func (r *Repository) SettledPayments(ctx context.Context, customerID *uuid.UUID) ([]models.PaymentAttempt, error) {
	query := r.db.WithContext(ctx).Where("status = ?", enums.PaymentAttemptSucceeded)
	if customerID != nil {
		query = query.Where("customer_id = ?", *customerID)
	}
	var rows []models.PaymentAttempt
	err := query.Find(&rows).Error
	return rows, err
}

func (r *Repository) UsageForPeriod(ctx context.Context, month, year int) ([]models.UsageCounter, error) {
	var rows []models.UsageCounter
	err := r.db.WithContext(ctx).Where("month = ? AND year = ?", month, year).Find(&rows).Error
	return rows, err
}
