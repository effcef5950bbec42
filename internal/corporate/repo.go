package corporate

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

func (r *Repository) CreateAccount(ctx context.Context, account *models.CorporateAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *Repository) FindAccount(ctx context.Context, id uuid.UUID) (*models.CorporateAccount, error) {
	var account models.CorporateAccount
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *Repository) ListAccounts(ctx context.Context, status *enums.CorporateAccountStatus, page pagination.Params) ([]models.CorporateAccount, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CorporateAccount{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.CorporateAccount
	if err := page.Apply(query.Order("company_name ASC")).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.CorporateAccount{}).Where("id = ?", id).Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) AddSubscription(ctx context.Context, link *models.CorporateSubscription) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *Repository) RemoveSubscription(ctx context.Context, accountID, subscriptionID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("corporate_account_id = ? AND subscription_id = ?", accountID, subscriptionID).
		Delete(&models.CorporateSubscription{})
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) ListSubscriptions(ctx context.Context, accountID uuid.UUID) ([]models.CorporateSubscription, error) {
	var rows []models.CorporateSubscription
	err := r.db.WithContext(ctx).Where("corporate_account_id = ?", accountID).Order("created_at ASC").Find(&rows).Error
	return rows, err
}
