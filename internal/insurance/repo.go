package insurance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
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

func (r *Repository) Create(ctx context.Context, policy *models.DeviceInsurance) error {
	return r.db.WithContext(ctx).Create(policy).Error
}

func (r *Repository) FindForCustomer(ctx context.Context, customerID, id uuid.UUID) (*models.DeviceInsurance, error) {
	var policy models.DeviceInsurance
	if err := r.db.WithContext(ctx).First(&policy, "id = ? AND customer_id = ?", id, customerID).Error; err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *Repository) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.DeviceInsurance, error) {
	var rows []models.DeviceInsurance
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *Repository) HasActiveForContract(ctx context.Context, contractID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DeviceInsurance{}).
		Where("device_contract_id = ? AND status = ?", contractID, enums.InsuranceActive).
		Count(&count).Error
	return count > 0, err
}

// RecordClaim bumps the claim counter if the policy is still active with claimsBefore claims.
func (r *Repository) RecordClaim(ctx context.Context, id uuid.UUID, claimsBefore int, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.DeviceInsurance{}).
		Where("id = ? AND status = ? AND claims_count = ?", id, enums.InsuranceActive, claimsBefore).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) Cancel(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.DeviceInsurance{}).
		Where("id = ? AND status = ?", id, enums.InsuranceActive).
		Updates(map[string]any{"status": enums.InsuranceCancelled, "cancelled_at": now, "updated_at": now})
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) CancelForContract(ctx context.Context, contractID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.DeviceInsurance{}).
		Where("device_contract_id = ? AND status = ?", contractID, enums.InsuranceActive).
		Updates(map[string]any{"status": enums.InsuranceCancelled, "cancelled_at": now, "updated_at": now})
	return res.RowsAffected, res.Error
}
