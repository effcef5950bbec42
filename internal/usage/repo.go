package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

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

// Accumulate adds the deltas to the (subscription, month, year) counter, creating it on first use.
func (r *Repository) Accumulate(ctx context.Context, subscriptionID uuid.UUID, month, year int, dataMB, voiceMinutes, sms int64, now time.Time) error {
	row := &models.UsageCounter{
		SubscriptionID:   subscriptionID,
		Month:            month,
		Year:             year,
		DataUsedMB:       dataMB,
		VoiceUsedMinutes: voiceMinutes,
		SMSUsed:          sms,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subscription_id"}, {Name: "month"}, {Name: "year"}},
		DoUpdates: clause.Assignments(map[string]any{
			"data_used_mb":       gorm.Expr("usage_counters.data_used_mb + ?", dataMB),
			"voice_used_minutes": gorm.Expr("usage_counters.voice_used_minutes + ?", voiceMinutes),
			"sms_used":           gorm.Expr("usage_counters.sms_used + ?", sms),
			"updated_at":         now,
		}),
	}).Create(row).Error
}

func (r *Repository) Find(ctx context.Context, subscriptionID uuid.UUID, month, year int) (*models.UsageCounter, error) {
	var row models.UsageCounter
	err := r.db.WithContext(ctx).
		First(&row, "subscription_id = ? AND month = ? AND year = ?", subscriptionID, month, year).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// History returns every counter of the subscription, newest period first.
func (r *Repository) History(ctx context.Context, subscriptionID uuid.UUID) ([]models.UsageCounter, error) {
	var rows []models.UsageCounter
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("year DESC, month DESC").
		Find(&rows).Error
	return rows, err
}

// TotalsForPeriod sums usage across all subscriptions for analytics.
func (r *Repository) TotalsForPeriod(ctx context.Context, month, year int) (models.UsageCounter, error) {
	var out models.UsageCounter
	err := r.db.WithContext(ctx).Model(&models.UsageCounter{}).
		Select("COALESCE(SUM(data_used_mb), 0) AS data_used_mb, COALESCE(SUM(voice_used_minutes), 0) AS voice_used_minutes, COALESCE(SUM(sms_used), 0) AS sms_used").
		Where("month = ? AND year = ?", month, year).
		Scan(&out).Error
	out.Month, out.Year = month, year
	return out, err
}
