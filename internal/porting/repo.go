package porting

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

type ListFilter struct {
	CustomerID *uuid.UUID
	Status     *enums.PortingStatus
	Direction  *enums.PortingDirection
}

func (r *Repository) Create(ctx context.Context, req *models.PortingRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PortingRequest, error) {
	var req models.PortingRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Repository) FindForCustomer(ctx context.Context, customerID, id uuid.UUID) (*models.PortingRequest, error) {
	var req models.PortingRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ? AND customer_id = ?", id, customerID).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.PortingRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PortingRequest{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.PortingRequest
	if err := page.Apply(query.Order("created_at DESC")).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CountOpenForNumber counts requested or approved ports touching phoneNumber.
func (r *Repository) CountOpenForNumber(ctx context.Context, phoneNumber string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PortingRequest{}).
		Where("phone_number = ? AND status IN ?", phoneNumber, []enums.PortingStatus{enums.PortingRequested, enums.PortingApproved}).
		Count(&count).Error
	return count, err
}

// Transition applies updates only while the request is still in one of from.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from []enums.PortingStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.PortingRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}
