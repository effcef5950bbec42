package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// DeviceContract finances a handset over monthly installments.
type DeviceContract struct {
	ID                       uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID               uuid.UUID  `gorm:"column:customer_id;type:uuid;not null;index"`
	SubscriptionID           *uuid.UUID `gorm:"column:subscription_id;type:uuid"`
	DeviceName               string     `gorm:"column:device_name;type:text;not null"`
	DevicePriceMinor         int64      `gorm:"column:device_price_minor;not null"`
	DownPaymentMinor         int64      `gorm:"column:down_payment_minor;not null"`
	InstallmentAmountMinor   int64      `gorm:"column:installment_amount_minor;not null"`
	InstallmentCount         int        `gorm:"column:installment_count;not null"`
	InstallmentsPaid         int        `gorm:"column:installments_paid;not null;default:0"`
	EarlyTerminationFeeMinor int64      `gorm:"column:early_termination_fee_minor;not null"`
	NextPaymentDate          *time.Time `gorm:"column:next_payment_date"`
	// PendingInvoiceID is the installment invoice awaiting settlement, if any.
	PendingInvoiceID *uuid.UUID                 `gorm:"column:pending_invoice_id;type:uuid;index"`
	Status           enums.DeviceContractStatus `gorm:"column:status;type:text;not null;default:'active';index"`
	TerminatedAt     *time.Time                 `gorm:"column:terminated_at"`
	CreatedAt        time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

func (DeviceContract) TableName() string { return "device_contracts" }

func (d *DeviceContract) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// RemainingInstallments is the number of installments still owed.
func (d *DeviceContract) RemainingInstallments() int {
	if remaining := d.InstallmentCount - d.InstallmentsPaid; remaining > 0 {
		return remaining
	}
	return 0
}
