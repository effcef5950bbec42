package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoamingPackage is a purchasable bundle valid in a fixed set of countries.
type RoamingPackage struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Code         string    `gorm:"column:code;type:text;not null;uniqueIndex"`
	Name         string    `gorm:"column:name;type:text;not null"`
	Countries    []string  `gorm:"column:countries;type:jsonb;serializer:json;not null"`
	PriceMinor   int64     `gorm:"column:price_minor;not null"`
	DataMB       int64     `gorm:"column:data_mb;not null;default:0"`
	VoiceMinutes int64     `gorm:"column:voice_minutes;not null;default:0"`
	ValidityDays int       `gorm:"column:validity_days;not null"`
	Active       bool      `gorm:"column:active;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (RoamingPackage) TableName() string { return "roaming_packages" }

func (r *RoamingPackage) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// CoversCountry reports whether code (ISO alpha-2, any case) is in the package.
func (r *RoamingPackage) CoversCountry(code string) bool {
	for _, c := range r.Countries {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

// RoamingActivation is a package bought for a subscription.
type RoamingActivation struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	SubscriptionID  uuid.UUID  `gorm:"column:subscription_id;type:uuid;not null;index"`
	PackageID       uuid.UUID  `gorm:"column:package_id;type:uuid;not null"`
	InvoiceID       *uuid.UUID `gorm:"column:invoice_id;type:uuid"`
	Country         string     `gorm:"column:country;type:text;not null"`
	DataRemainingMB int64      `gorm:"column:data_remaining_mb;not null"`
	StartsAt        time.Time  `gorm:"column:starts_at;not null"`
	ExpiresAt       time.Time  `gorm:"column:expires_at;not null"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (RoamingActivation) TableName() string { return "roaming_activations" }

func (r *RoamingActivation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
