package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// FamilyPlan pools SharedDataMB across up to MaxMembers subscriptions.
type FamilyPlan struct {
	ID                    uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Name                  string                 `gorm:"column:name;type:text;not null"`
	OwnerCustomerID       uuid.UUID              `gorm:"column:owner_customer_id;type:uuid;not null;index"`
	PrimarySubscriptionID uuid.UUID              `gorm:"column:primary_subscription_id;type:uuid;not null"`
	SharedDataMB          int64                  `gorm:"column:shared_data_mb;not null"`
	MaxMembers            int                    `gorm:"column:max_members;not null"`
	Status                enums.FamilyPlanStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CreatedAt             time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time              `gorm:"column:updated_at;autoUpdateTime"`
	Members               []FamilyMember         `gorm:"foreignKey:FamilyPlanID"`
}

func (FamilyPlan) TableName() string { return "family_plans" }

func (f *FamilyPlan) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

// FamilyMember links a subscription to a family plan.
type FamilyMember struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	FamilyPlanID   uuid.UUID              `gorm:"column:family_plan_id;type:uuid;not null;index"`
	SubscriptionID uuid.UUID              `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex"`
	CustomerID     uuid.UUID              `gorm:"column:customer_id;type:uuid;not null;index"`
	Role           enums.FamilyMemberRole `gorm:"column:role;type:text;not null;default:'member'"`
	DataLimitMB    *int64                 `gorm:"column:data_limit_mb"`
	JoinedAt       time.Time              `gorm:"column:joined_at;autoCreateTime"`
}

func (FamilyMember) TableName() string { return "family_members" }

func (m *FamilyMember) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
