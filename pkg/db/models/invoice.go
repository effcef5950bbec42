package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

// Invoice amounts are minor units; TotalMinor is always SubtotalMinor + TaxMinor.
type Invoice struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceNumber  string              `gorm:"column:invoice_number;type:text;not null;uniqueIndex"`
	CustomerID     uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	SubscriptionID *uuid.UUID          `gorm:"column:subscription_id;type:uuid;index"`
	SubtotalMinor  int64               `gorm:"column:subtotal_minor;not null"`
	TaxMinor       int64               `gorm:"column:tax_minor;not null"`
	TotalMinor     int64               `gorm:"column:total_minor;not null"`
	Status         enums.InvoiceStatus `gorm:"column:status;type:text;not null;default:'pending';index"`
	LineItems      types.LineItems     `gorm:"column:line_items;type:jsonb;serializer:json;not null"`
	DueDate        time.Time           `gorm:"column:due_date;not null"`
	PaidAt         *time.Time          `gorm:"column:paid_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Invoice) TableName() string { return "invoices" }

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
