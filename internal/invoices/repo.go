package invoices

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
	CustomerID     *uuid.UUID
	SubscriptionID *uuid.UUID
	Status         *enums.InvoiceStatus
}

func (r *Repository) Create(ctx context.Context, inv *models.Invoice) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.WithContext(ctx).First(&inv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) FindForCustomer(ctx context.Context, customerID, id uuid.UUID) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.WithContext(ctx).First(&inv, "id = ? AND customer_id = ?", id, customerID).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Invoice{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.SubscriptionID != nil {
		query = query.Where("subscription_id = ?", *filter.SubscriptionID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Invoice
	if err := page.Apply(query.Order("created_at DESC, invoice_number DESC")).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListOpenForCustomer returns pending and overdue invoices, oldest due first.
func (r *Repository) ListOpenForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Invoice, error) {
	var rows []models.Invoice
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status IN ?", customerID, openStatuses).
		Order("due_date ASC").
		Find(&rows).Error
	return rows, err
}

// ListSince loads every invoice created at or after since, for revenue reporting.
func (r *Repository) ListSince(ctx context.Context, since time.Time) ([]models.Invoice, error) {
	var rows []models.Invoice
	err := r.db.WithContext(ctx).Where("created_at >= ?", since).Order("created_at ASC").Find(&rows).Error
	return rows, err
}

// SumOutstanding totals open invoices per customer.
func (r *Repository) SumOutstanding(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Select("COALESCE(SUM(total_minor), 0)").
		Where("customer_id = ? AND status IN ?", customerID, openStatuses).
		Scan(&total).Error
	return total, err
}

// TransitionStatus updates the status only when the row is currently in one of from.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.InvoiceStatus, to enums.InvoiceStatus, paidAt *time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// MarkOverdue flips pending invoices whose due date has passed.
func (r *Repository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", enums.InvoiceStatusPending, now).
		Updates(map[string]any{"status": enums.InvoiceStatusOverdue, "updated_at": now})
	return res.RowsAffected, res.Error
}

var openStatuses = []enums.InvoiceStatus{enums.InvoiceStatusPending, enums.InvoiceStatusOverdue}
