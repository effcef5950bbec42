package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

type ListFilter struct {
	Status     *enums.PaymentAttemptStatus
	CustomerID *uuid.UUID
	InvoiceID  *uuid.UUID
}

var retryableStatuses = []enums.PaymentAttemptStatus{enums.PaymentAttemptPending, enums.PaymentAttemptFailed}

func (r *Repository) Create(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
	var row models.PaymentAttempt
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindByGatewayReference(ctx context.Context, ref string) (*models.PaymentAttempt, error) {
	var row models.PaymentAttempt
	if err := r.db.WithContext(ctx).First(&row, "gateway_reference = ?", ref).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindOpenForInvoice returns the newest attempt that can still be charged.
func (r *Repository) FindOpenForInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.PaymentAttempt, error) {
	var row models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("invoice_id = ? AND status IN ?", invoiceID, retryableStatuses).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListDue returns attempts the retry job should charge now.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.PaymentAttempt, error) {
	var rows []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("status IN ?", retryableStatuses).
		Where("(next_retry_at IS NULL OR next_retry_at <= ?)", now).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.PaymentAttempt, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentAttempt{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.PaymentAttempt
	if err := page.Apply(query.Order("created_at DESC")).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// LastSettledAt is the most recent successful charge for the customer.
func (r *Repository) LastSettledAt(ctx context.Context, customerID uuid.UUID) (*time.Time, error) {
	var rows []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, enums.PaymentAttemptSucceeded).
		Order("last_attempted_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0].LastAttemptedAt, nil
}

// ApplyOutcome writes a charge result only if nobody else recorded one since the attempt
// was loaded, keyed on the status set and attempt number.
func (r *Repository) ApplyOutcome(ctx context.Context, id uuid.UUID, from []enums.PaymentAttemptStatus, expectedNumber int, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.PaymentAttempt{}).
		Where("id = ? AND status IN ? AND attempt_number = ?", id, from, expectedNumber).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}
