package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// Repository answers the order-level questions the other repositories do not.
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

// CountLiveLines counts subscriptions that still hold a number: pending, active or suspended.
func (r *Repository) CountLiveLines(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("customer_id = ? AND status IN ?", customerID, []enums.SubscriptionStatus{
			enums.SubscriptionStatusPending,
			enums.SubscriptionStatusActive,
			enums.SubscriptionStatusSuspended,
		}).
		Count(&count).Error
	return count, err
}
