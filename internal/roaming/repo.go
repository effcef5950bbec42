package roaming

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
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

func (r *Repository) CreatePackage(ctx context.Context, pkg *models.RoamingPackage) error {
	return r.db.WithContext(ctx).Create(pkg).Error
}

func (r *Repository) SavePackage(ctx context.Context, pkg *models.RoamingPackage) error {
	return r.db.WithContext(ctx).Save(pkg).Error
}

func (r *Repository) FindPackage(ctx context.Context, id uuid.UUID) (*models.RoamingPackage, error) {
	var pkg models.RoamingPackage
	if err := r.db.WithContext(ctx).First(&pkg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ListPackages returns the catalog ordered by price. Country filtering happens in memory
// because the country list is a JSON column.
func (r *Repository) ListPackages(ctx context.Context, activeOnly bool) ([]models.RoamingPackage, error) {
	query := r.db.WithContext(ctx).Model(&models.RoamingPackage{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []models.RoamingPackage
	err := query.Order("price_minor ASC, code ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) CreateActivation(ctx context.Context, activation *models.RoamingActivation) error {
	return r.db.WithContext(ctx).Create(activation).Error
}

func (r *Repository) ListActivations(ctx context.Context, subscriptionID uuid.UUID) ([]models.RoamingActivation, error) {
	var rows []models.RoamingActivation
	err := r.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID).Order("starts_at DESC").Find(&rows).Error
	return rows, err
}

// CountLive counts unexpired activations of the subscription in country.
func (r *Repository) CountLive(ctx context.Context, subscriptionID uuid.UUID, country string, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RoamingActivation{}).
		Where("subscription_id = ? AND country = ? AND expires_at > ?", subscriptionID, country, now).
		Count(&count).Error
	return count, err
}
