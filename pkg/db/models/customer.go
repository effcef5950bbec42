package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// CustomerProfile is the account a subscriber logs in with.
type CustomerProfile struct {
	ID                     uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Email                  string          `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash           string          `gorm:"column:password_hash;not null"`
	FirstName              string          `gorm:"column:first_name;not null"`
	LastName               string          `gorm:"column:last_name;not null"`
	Phone                  *string         `gorm:"column:phone"`
	KYCStatus              enums.KYCStatus `gorm:"column:kyc_status;type:text;not null;default:'pending'"`
	SystemRole             *string         `gorm:"column:system_role"`
	CreditBalanceMinor     int64           `gorm:"column:credit_balance_minor;not null;default:0"`
	StripeCustomerID       *string         `gorm:"column:stripe_customer_id"`
	DefaultPaymentMethodID *string         `gorm:"column:default_payment_method_id"`
	IsActive               bool            `gorm:"column:is_active;not null"`
	LastLoginAt            *time.Time      `gorm:"column:last_login_at"`
	CreatedAt              time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (CustomerProfile) TableName() string { return "customer_profiles" }

func (c *CustomerProfile) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// IsAdmin reports whether the profile carries the admin system role.
func (c *CustomerProfile) IsAdmin() bool {
	return c != nil && c.SystemRole != nil && *c.SystemRole == string(enums.RoleAdmin)
}
