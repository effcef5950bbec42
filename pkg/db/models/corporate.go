package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// CorporateAccount groups subscriptions billed to one company.
type CorporateAccount struct {
	ID               uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	CompanyName      string                       `gorm:"column:company_name;type:text;not null"`
	TaxID            string                       `gorm:"column:tax_id;type:text;not null;uniqueIndex"`
	BillingEmail     string                       `gorm:"column:billing_email;type:text;not null"`
	AdminCustomerID  uuid.UUID                    `gorm:"column:admin_customer_id;type:uuid;not null;index"`
	CreditLimitMinor int64                        `gorm:"column:credit_limit_minor;not null;default:0"`
	DiscountPercent  int                          `gorm:"column:discount_percent;not null;default:0"`
	Status           enums.CorporateAccountStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CreatedAt        time.Time                    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                    `gorm:"column:updated_at;autoUpdateTime"`
}

func (CorporateAccount) TableName() string { return "corporate_accounts" }

func (c *CorporateAccount) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CorporateSubscription attaches a subscription to a corporate account.
type CorporateSubscription struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CorporateAccountID uuid.UUID `gorm:"column:corporate_account_id;type:uuid;not null;index"`
	SubscriptionID     uuid.UUID `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex"`
	CostCenter         *string   `gorm:"column:cost_center"`
	EmployeeName       *string   `gorm:"column:employee_name"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CorporateSubscription) TableName() string { return "corporate_subscriptions" }

func (c *CorporateSubscription) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
