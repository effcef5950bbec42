package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// DeviceInsurance covers the handset of a device contract.
type DeviceInsurance struct {
	ID                  uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	DeviceContractID    uuid.UUID             `gorm:"column:device_contract_id;type:uuid;not null;index"`
	CustomerID          uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	CoverageTier        enums.CoverageTier    `gorm:"column:coverage_tier;type:text;not null"`
	MonthlyPremiumMinor int64                 `gorm:"column:monthly_premium_minor;not null"`
	CoverageAmountMinor int64                 `gorm:"column:coverage_amount_minor;not null"`
	Status              enums.InsuranceStatus `gorm:"column:status;type:text;not null;default:'active'"`
	ClaimsCount         int                   `gorm:"column:claims_count;not null;default:0"`
	ClaimDescription    *string               `gorm:"column:claim_description"`
	StartsAt            time.Time             `gorm:"column:starts_at;not null"`
	ExpiresAt           time.Time             `gorm:"column:expires_at;not null"`
	ClaimedAt           *time.Time            `gorm:"column:claimed_at"`
	CancelledAt         *time.Time            `gorm:"column:cancelled_at"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (DeviceInsurance) TableName() string { return "device_insurance" }

func (d *DeviceInsurance) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
