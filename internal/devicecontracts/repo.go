package devicecontracts

import (
	"context"

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

func (r *Repository) Create(ctx context.Context, contract *models.DeviceContract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeviceContract, error) {
	var contract models.DeviceContract
	if err := r.db.WithContext(ctx).First(&contract, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *Repository) FindForCustomer(ctx context.Context, customerID, id uuid.UUID) (*models.DeviceContract, error) {
	var contract models.DeviceContract
	if err := r.db.WithContext(ctx).First(&contract, "id = ? AND customer_id = ?", id, customerID).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *Repository) ListForCustomer(ctx context.Context, customerID uuid.UUID, status *enums.DeviceContractStatus, page pagination.Params) ([]models.DeviceContract, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DeviceContract{}).Where("customer_id = ?", customerID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.DeviceContract
	if err := page.Apply(query.Order("created_at DESC")).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListActiveForCustomer backs the dashboard.
func (r *Repository) ListActiveForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.DeviceContract, error) {
	var rows []models.DeviceContract
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, enums.DeviceContractActive).
		Order("next_payment_date ASC").
		Find(&rows).Error
	return rows, err
}

// FindByPendingInvoice returns the active contract waiting on invoiceID.
func (r *Repository) FindByPendingInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.DeviceContract, error) {
	var contract models.DeviceContract
	err := r.db.WithContext(ctx).
		Where("pending_invoice_id = ? AND status = ?", invoiceID, enums.DeviceContractActive).
		First(&contract).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

// RecordInstallment applies updates only if the contract is still active with paidBefore
// installments and the expected pending invoice (nil meaning none), so two concurrent
// payments cannot both count.
func (r *Repository) RecordInstallment(ctx context.Context, id uuid.UUID, paidBefore int, pending *uuid.UUID, updates map[string]any) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.DeviceContract{}).
		Where("id = ? AND status = ? AND installments_paid = ?", id, enums.DeviceContractActive, paidBefore)
	if pending == nil {
		query = query.Where("pending_invoice_id IS NULL")
	} else {
		query = query.Where("pending_invoice_id = ?", *pending)
	}
	res := query.Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from enums.DeviceContractStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.DeviceContract{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}
