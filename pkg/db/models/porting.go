package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// PortingRequest moves a number between operators.
type PortingRequest struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID        uuid.UUID              `gorm:"column:customer_id;type:uuid;not null;index"`
	PhoneNumber       string                 `gorm:"column:phone_number;type:text;not null;index"`
	Direction         enums.PortingDirection `gorm:"column:direction;type:text;not null"`
	DonorOperator     string                 `gorm:"column:donor_operator;type:text;not null"`
	RecipientOperator string                 `gorm:"column:recipient_operator;type:text;not null"`
	PortingCode       string                 `gorm:"column:porting_code;type:text;not null"`
	Status            enums.PortingStatus    `gorm:"column:status;type:text;not null;default:'requested';index"`
	PlanID            *uuid.UUID             `gorm:"column:plan_id;type:uuid"`
	SubscriptionID    *uuid.UUID             `gorm:"column:subscription_id;type:uuid"`
	RejectionReason   *string                `gorm:"column:rejection_reason"`
	ScheduledAt       *time.Time             `gorm:"column:scheduled_at"`
	CompletedAt       *time.Time             `gorm:"column:completed_at"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (PortingRequest) TableName() string { return "porting_requests" }

func (p *PortingRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
