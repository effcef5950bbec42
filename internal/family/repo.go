package family

import (
	"context"

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

func (r *Repository) CreatePlan(ctx context.Context, plan *models.FamilyPlan) error {
	return r.db.WithContext(ctx).Omit("Members").Create(plan).Error
}

func (r *Repository) CreateMember(ctx context.Context, member *models.FamilyMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// FindByID loads the plan with its members, oldest first.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FamilyPlan, error) {
	var plan models.FamilyPlan
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		First(&plan, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListForCustomer returns active plans the customer owns or belongs to.
func (r *Repository) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.FamilyPlan, error) {
	var rows []models.FamilyPlan
	member := r.db.Model(&models.FamilyMember{}).Select("family_plan_id").Where("customer_id = ?", customerID)
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Where("status = ?", enums.FamilyPlanActive).
		Where("owner_customer_id = ? OR id IN (?)", customerID, member).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) CountMembers(ctx context.Context, planID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FamilyMember{}).Where("family_plan_id = ?", planID).Count(&count).Error
	return count, err
}

func (r *Repository) DeleteMember(ctx context.Context, planID, memberID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND family_plan_id = ? AND role = ?", memberID, planID, enums.FamilyMemberMember).
		Delete(&models.FamilyMember{})
	return res.RowsAffected == 1, res.Error
}

// Dissolve marks the plan dissolved and frees every member subscription.
func (r *Repository) Dissolve(ctx context.Context, planID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.FamilyPlan{}).
		Where("id = ? AND status = ?", planID, enums.FamilyPlanActive).
		Update("status", enums.FamilyPlanDissolved)
	if res.Error != nil || res.RowsAffected != 1 {
		return false, res.Error
	}
	if err := r.db.WithContext(ctx).Where("family_plan_id = ?", planID).Delete(&models.FamilyMember{}).Error; err != nil {
		return false, err
	}
	return true, nil
}
