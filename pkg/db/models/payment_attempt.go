package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// PaymentAttempt tracks collection of one invoice across retries.
type PaymentAttempt struct {
	ID               uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID        uuid.UUID                  `gorm:"column:invoice_id;type:uuid;not null;index"`
	CustomerID       uuid.UUID                  `gorm:"column:customer_id;type:uuid;not null;index"`
	SubscriptionID   *uuid.UUID                 `gorm:"column:subscription_id;type:uuid"`
	AmountMinor      int64                      `gorm:"column:amount_minor;not null"`
	AttemptNumber    int                        `gorm:"column:attempt_number;not null;default:0"`
	MaxRetries       int                        `gorm:"column:max_retries;not null"`
	Status           enums.PaymentAttemptStatus `gorm:"column:status;type:text;not null;default:'pending';index"`
	NextRetryAt      *time.Time                 `gorm:"column:next_retry_at;index"`
	GatewayReference *string                    `gorm:"column:gateway_reference;index"`
	FailureReason    *string                    `gorm:"column:failure_reason"`
	LastAttemptedAt  *time.Time                 `gorm:"column:last_attempted_at"`
	CreatedAt        time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentAttempt) TableName() string { return "payment_attempts" }

func (p *PaymentAttempt) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// RetriesExhausted reports whether no further attempt is allowed.
func (p *PaymentAttempt) RetriesExhausted() bool {
	return p.AttemptNumber >= p.MaxRetries
}
