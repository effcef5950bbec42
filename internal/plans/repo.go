package plans

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
)

// Repository persists the plan catalog.
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

func (r *Repository) Create(ctx context.Context, plan *models.PlanConfiguration) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *Repository) Save(ctx context.Context, plan *models.PlanConfiguration) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PlanConfiguration, error) {
	var plan models.PlanConfiguration
	if err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindByIDs returns the plans keyed by id. Missing ids are skipped.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.PlanConfiguration, error) {
	out := make(map[uuid.UUID]models.PlanConfiguration, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.PlanConfiguration
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *Repository) List(ctx context.Context, activeOnly bool, page pagination.Params) ([]models.PlanConfiguration, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PlanConfiguration{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.PlanConfiguration
	if err := page.Apply(query.Order("price_minor ASC, code ASC")).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
