package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// Subscription binds a customer, a plan and an MSISDN for a validity period.
type Subscription struct {
	ID                  uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID          uuid.UUID                `gorm:"column:customer_id;type:uuid;not null;index"`
	PlanID              uuid.UUID                `gorm:"column:plan_id;type:uuid;not null;index"`
	MsisdnID            uuid.UUID                `gorm:"column:msisdn_id;type:uuid;not null"`
	PhoneNumber         string                   `gorm:"column:phone_number;type:text;not null;index"`
	Status              enums.SubscriptionStatus `gorm:"column:status;type:text;not null;default:'pending';index"`
	StartDate           time.Time                `gorm:"column:start_date;not null"`
	EndDate             time.Time                `gorm:"column:end_date;not null;index"`
	DataBalanceMB       int64                    `gorm:"column:data_balance_mb;not null;default:0"`
	VoiceBalanceMinutes int64                    `gorm:"column:voice_balance_minutes;not null;default:0"`
	SMSBalance          int64                    `gorm:"column:sms_balance;not null;default:0"`
	AutoRenew           bool                     `gorm:"column:auto_renew;not null"`
	SuspendedAt         *time.Time               `gorm:"column:suspended_at"`
	CancelledAt         *time.Time               `gorm:"column:cancelled_at"`
	CreatedAt           time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (Subscription) TableName() string { return "subscriptions" }

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
