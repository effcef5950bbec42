package msisdn

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
)

// Repository owns msisdn_inventory. Every state change is a conditional UPDATE so
// concurrent callers cannot move the same number twice.
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

// ListFilter narrows inventory queries. Pattern accepts * as a wildcard.
type ListFilter struct {
	Status  *enums.MsisdnStatus
	Tier    *enums.MsisdnTier
	Region  string
	Pattern string
}

func (r *Repository) Create(ctx context.Context, m *models.MsisdnInventory) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repository) CreateBatch(ctx context.Context, rows []models.MsisdnInventory) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, 100).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MsisdnInventory, error) {
	var row models.MsisdnInventory
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindByNumber(ctx context.Context, phoneNumber string) (*models.MsisdnInventory, error) {
	var row models.MsisdnInventory
	if err := r.db.WithContext(ctx).First(&row, "phone_number = ?", phoneNumber).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.MsisdnInventory, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.MsisdnInventory{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Tier != nil {
		query = query.Where("tier = ?", *filter.Tier)
	}
	if region := strings.TrimSpace(filter.Region); region != "" {
		query = query.Where("region = ?", region)
	}
	if pattern := likePattern(filter.Pattern); pattern != "" {
		query = query.Where("phone_number LIKE ?", pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.MsisdnInventory
	if err := page.Apply(query.Order("phone_number ASC")).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CountByStatus feeds the inventory section of the users analytics.
func (r *Repository) CountByStatus(ctx context.Context) (map[enums.MsisdnStatus]int64, error) {
	var rows []struct {
		Status enums.MsisdnStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&models.MsisdnInventory{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.MsisdnStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// Claim reserves the number for customerID when it is available or its reservation has
// lapsed. A repeat claim by the current holder refreshes the expiry. Pinned reservations
// (no expiry) belong to a placed order and never match.
func (r *Repository) Claim(ctx context.Context, id, customerID uuid.UUID, now, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MsisdnInventory{}).
		Where("id = ?", id).
		Where(
			r.db.Where("status = ?", enums.MsisdnStatusAvailable).
				Or("status = ? AND reservation_expires_at <= ?", enums.MsisdnStatusReserved, now).
				Or("status = ? AND reserved_by = ? AND reservation_expires_at IS NOT NULL", enums.MsisdnStatusReserved, customerID),
		).
		Updates(map[string]any{
			"status":                 enums.MsisdnStatusReserved,
			"reserved_by":            customerID,
			"reservation_expires_at": expiresAt,
			"updated_at":             now,
		})
	return res.RowsAffected == 1, res.Error
}

// Pin clears the expiry of customerID's reservation so neither the sweep nor another
// claim can take the number from a pending subscription.
func (r *Repository) Pin(ctx context.Context, id, customerID uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MsisdnInventory{}).
		Where("id = ? AND status = ? AND reserved_by = ?", id, enums.MsisdnStatusReserved, customerID).
		Updates(map[string]any{
			"reservation_expires_at": nil,
			"updated_at":             now,
		})
	return res.RowsAffected == 1, res.Error
}

// Release drops a live, unpinned reservation held by customerID.
func (r *Repository) Release(ctx context.Context, id, customerID uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MsisdnInventory{}).
		Where("id = ? AND status = ? AND reserved_by = ? AND reservation_expires_at IS NOT NULL", id, enums.MsisdnStatusReserved, customerID).
		Updates(map[string]any{
			"status":                 enums.MsisdnStatusAvailable,
			"reserved_by":            nil,
			"reservation_expires_at": nil,
			"updated_at":             now,
		})
	return res.RowsAffected == 1, res.Error
}

// Activate moves a number held by customerID to active. Already-active numbers owned by the
// same customer count as success so redelivered fulfillment events are harmless.
func (r *Repository) Activate(ctx context.Context, id, customerID uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MsisdnInventory{}).
		Where("id = ? AND status = ? AND reserved_by = ?", id, enums.MsisdnStatusReserved, customerID).
		Updates(map[string]any{
			"status":                 enums.MsisdnStatusActive,
			"customer_id":            customerID,
			"reserved_by":            nil,
			"reservation_expires_at": nil,
			"activated_at":           now,
			"updated_at":             now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.MsisdnInventory{}).
		Where("id = ? AND status = ? AND customer_id = ?", id, enums.MsisdnStatusActive, customerID).
		Count(&count).Error
	return count == 1, err
}

// CoolDown retires a number until coolingUntil. customer_id keeps the last owner so only
// that subscriber can reclaim it.
func (r *Repository) CoolDown(ctx context.Context, id uuid.UUID, now, coolingUntil time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MsisdnInventory{}).
		Where("id = ? AND status IN ?", id, []enums.MsisdnStatus{enums.MsisdnStatusActive, enums.MsisdnStatusReserved}).
		Updates(map[string]any{
			"status":                 enums.MsisdnStatusCoolingDown,
			"reserved_by":            nil,
			"reservation_expires_at": nil,
			"cooling_until":          coolingUntil,
			"updated_at":             now,
		})
	return res.RowsAffected == 1, res.Error
}

// Reclaim gives a cooling-down number back to the subscriber who released it.
func (r *Repository) Reclaim(ctx context.Context, id, customerID uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MsisdnInventory{}).
		Where("id = ? AND status = ? AND customer_id = ?", id, enums.MsisdnStatusCoolingDown, customerID).
		Updates(map[string]any{
			"status":        enums.MsisdnStatusActive,
			"customer_id":   customerID,
			"cooling_until": nil,
			"activated_at":  now,
			"updated_at":    now,
		})
	return res.RowsAffected == 1, res.Error
}

// ExpiredReservations returns up to limit reservations whose TTL has passed.
func (r *Repository) ExpiredReservations(ctx context.Context, now time.Time, limit int) ([]models.MsisdnInventory, error) {
	var rows []models.MsisdnInventory
	err := r.db.WithContext(ctx).
		Where("status = ? AND reservation_expires_at <= ?", enums.MsisdnStatusReserved, now).
		Order("reservation_expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ReleaseExpired frees one lapsed reservation. It is a no-op when the number was
// claimed again in the meantime.
func (r *Repository) ReleaseExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MsisdnInventory{}).
		Where("id = ? AND status = ? AND reservation_expires_at <= ?", id, enums.MsisdnStatusReserved, now).
		Updates(map[string]any{
			"status":                 enums.MsisdnStatusAvailable,
			"reserved_by":            nil,
			"reservation_expires_at": nil,
			"updated_at":             now,
		})
	return res.RowsAffected == 1, res.Error
}

// RecycleCooled returns every number past its cooling period to the pool.
func (r *Repository) RecycleCooled(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.MsisdnInventory{}).
		Where("status = ? AND cooling_until <= ?", enums.MsisdnStatusCoolingDown, now).
		Updates(map[string]any{
			"status":        enums.MsisdnStatusAvailable,
			"customer_id":   nil,
			"cooling_until": nil,
			"activated_at":  nil,
			"updated_at":    now,
		})
	return res.RowsAffected, res.Error
}

func (r *Repository) UpdateAttributes(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MsisdnInventory{}).Where("id = ?", id).Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// DeleteAvailable removes a number that has never left the pool.
func (r *Repository) DeleteAvailable(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, enums.MsisdnStatusAvailable).
		Delete(&models.MsisdnInventory{})
	return res.RowsAffected == 1, res.Error
}

func likePattern(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "*") {
		return "%" + raw + "%"
	}
	return strings.ReplaceAll(raw, "*", "%")
}
