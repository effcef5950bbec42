package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// PlanConfiguration is a sellable tariff.
type PlanConfiguration struct {
	ID                uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Code              string         `gorm:"column:code;type:text;not null;uniqueIndex"`
	Name              string         `gorm:"column:name;type:text;not null"`
	Description       string         `gorm:"column:description;type:text"`
	PlanType          enums.PlanType `gorm:"column:plan_type;type:text;not null;default:'prepaid'"`
	PriceMinor        int64          `gorm:"column:price_minor;not null"`
	DataQuotaMB       int64          `gorm:"column:data_quota_mb;not null;default:0"`
	VoiceQuotaMinutes int64          `gorm:"column:voice_quota_minutes;not null;default:0"`
	SMSQuota          int64          `gorm:"column:sms_quota;not null;default:0"`
	ValidityDays      int            `gorm:"column:validity_days;not null"`
	Active            bool           `gorm:"column:active;not null"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (PlanConfiguration) TableName() string { return "plan_configurations" }

func (p *PlanConfiguration) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
