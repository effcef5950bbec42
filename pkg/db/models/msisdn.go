package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// MsisdnInventory is one phone number and its lifecycle state.
type MsisdnInventory struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	PhoneNumber          string             `gorm:"column:phone_number;type:text;not null;uniqueIndex"`
	Status               enums.MsisdnStatus `gorm:"column:status;type:text;not null;default:'available';index"`
	Tier                 enums.MsisdnTier   `gorm:"column:tier;type:text;not null;default:'standard'"`
	Region               string             `gorm:"column:region;type:text;not null;index"`
	CustomerID           *uuid.UUID         `gorm:"column:customer_id;type:uuid;index"`
	ReservedBy           *uuid.UUID         `gorm:"column:reserved_by;type:uuid"`
	ReservationExpiresAt *time.Time         `gorm:"column:reservation_expires_at"`
	CoolingUntil         *time.Time         `gorm:"column:cooling_until"`
	ActivatedAt          *time.Time         `gorm:"column:activated_at"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (MsisdnInventory) TableName() string { return "msisdn_inventory" }

func (m *MsisdnInventory) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// ReservationExpired reports whether a reserved number can be claimed again at now.
func (m *MsisdnInventory) ReservationExpired(now time.Time) bool {
	return m.Status == enums.MsisdnStatusReserved &&
		m.ReservationExpiresAt != nil &&
		!m.ReservationExpiresAt.After(now)
}
