package subscriptions

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
	CustomerID *uuid.UUID
	Status     *enums.SubscriptionStatus
	PlanID     *uuid.UUID
}

func (r *Repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) FindForCustomer(ctx context.Context, customerID, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).First(&sub, "id = ? AND customer_id = ?", id, customerID).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Subscription, error) {
	var rows []models.Subscription
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("created_at ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.Subscription, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Subscription{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PlanID != nil {
		query = query.Where("plan_id = ?", *filter.PlanID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Subscription
	if err := page.Apply(query.Order("created_at DESC")).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListAllForCustomer is unpaginated; customers hold a handful of lines.
func (r *Repository) ListAllForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Subscription, error) {
	var rows []models.Subscription
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).Order("created_at ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) CountByStatus(ctx context.Context) (map[enums.SubscriptionStatus]int64, error) {
	var rows []struct {
		Status enums.SubscriptionStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.SubscriptionStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// PlanCount is one row of the plan distribution.
type PlanCount struct {
	PlanID uuid.UUID
	Count  int64
}

// CountActiveByPlan groups live subscriptions by plan.
func (r *Repository) CountActiveByPlan(ctx context.Context) ([]PlanCount, error) {
	var rows []PlanCount
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Select("plan_id, COUNT(*) AS count").
		Where("status IN ?", []enums.SubscriptionStatus{enums.SubscriptionStatusActive, enums.SubscriptionStatusSuspended}).
		Group("plan_id").
		Scan(&rows).Error
	return rows, err
}

// ListEnded returns active subscriptions whose period ended at or before now.
func (r *Repository) ListEnded(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	var rows []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_date <= ?", enums.SubscriptionStatusActive, now).
		Order("end_date ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Transition applies updates only while the subscription is in one of from.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from []enums.SubscriptionStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// AddBalances increments balances atomically for top-ups.
func (r *Repository) AddBalances(ctx context.Context, id uuid.UUID, dataMB, voiceMinutes, sms int64, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"data_balance_mb":       gorm.Expr("data_balance_mb + ?", dataMB),
			"voice_balance_minutes": gorm.Expr("voice_balance_minutes + ?", voiceMinutes),
			"sms_balance":           gorm.Expr("sms_balance + ?", sms),
			"updated_at":            now,
		}).Error
}

// DeductUsage subtracts consumption and clamps every balance at zero.
func (r *Repository) DeductUsage(ctx context.Context, id uuid.UUID, dataMB, voiceMinutes, sms int64, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"data_balance_mb":       gorm.Expr("CASE WHEN data_balance_mb > ? THEN data_balance_mb - ? ELSE 0 END", dataMB, dataMB),
			"voice_balance_minutes": gorm.Expr("CASE WHEN voice_balance_minutes > ? THEN voice_balance_minutes - ? ELSE 0 END", voiceMinutes, voiceMinutes),
			"sms_balance":           gorm.Expr("CASE WHEN sms_balance > ? THEN sms_balance - ? ELSE 0 END", sms, sms),
			"updated_at":            now,
		}).Error
}
