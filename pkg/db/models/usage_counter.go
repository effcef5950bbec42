package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageCounter accumulates consumption per subscription per calendar month.
type UsageCounter struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey" csv:"-"`
	SubscriptionID   uuid.UUID `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:idx_usage_counters_period" csv:"subscription_id"`
	Month            int       `gorm:"column:month;not null;uniqueIndex:idx_usage_counters_period" csv:"month"`
	Year             int       `gorm:"column:year;not null;uniqueIndex:idx_usage_counters_period" csv:"year"`
	DataUsedMB       int64     `gorm:"column:data_used_mb;not null;default:0" csv:"data_used_mb"`
	VoiceUsedMinutes int64     `gorm:"column:voice_used_minutes;not null;default:0" csv:"voice_used_minutes"`
	SMSUsed          int64     `gorm:"column:sms_used;not null;default:0" csv:"sms_used"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" csv:"-"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime" csv:"updated_at"`
}

func (UsageCounter) TableName() string { return "usage_counters" }

func (u *UsageCounter) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
