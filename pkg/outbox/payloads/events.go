package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// OrderPlacedEvent is emitted when a SIM order commits. Fulfillment activates the number and
// subscription from it.
type OrderPlacedEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	MsisdnID       uuid.UUID `json:"msisdn_id"`
	PhoneNumber    string    `json:"phone_number"`
	PlanID         uuid.UUID `json:"plan_id"`
	InvoiceID      uuid.UUID `json:"invoice_id"`
	TotalMinor     int64     `json:"total_minor"`
}

// PlanChangedEvent reports a committed plan change and its proration.
type PlanChangedEvent struct {
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	CustomerID     uuid.UUID  `json:"customer_id"`
	OldPlanID      uuid.UUID  `json:"old_plan_id"`
	NewPlanID      uuid.UUID  `json:"new_plan_id"`
	NewPlanName    string     `json:"new_plan_name"`
	DaysRemaining  int        `json:"days_remaining"`
	NetMinor       int64      `json:"net_minor"`
	InvoiceID      *uuid.UUID `json:"invoice_id,omitempty"`
}

// InvoiceCreatedEvent announces a new invoice.
type InvoiceCreatedEvent struct {
	InvoiceID      uuid.UUID  `json:"invoice_id"`
	InvoiceNumber  string     `json:"invoice_number"`
	CustomerID     uuid.UUID  `json:"customer_id"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	SubtotalMinor  int64      `json:"subtotal_minor"`
	TaxMinor       int64      `json:"tax_minor"`
	TotalMinor     int64      `json:"total_minor"`
	DueDate        time.Time  `json:"due_date"`
	Reason         string     `json:"reason"`
}

// ContractCreatedEvent announces a device financing contract.
type ContractCreatedEvent struct {
	ContractID             uuid.UUID `json:"contract_id"`
	CustomerID             uuid.UUID `json:"customer_id"`
	DeviceName             string    `json:"device_name"`
	DevicePriceMinor       int64     `json:"device_price_minor"`
	DownPaymentMinor       int64     `json:"down_payment_minor"`
	InstallmentAmountMinor int64     `json:"installment_amount_minor"`
	InstallmentCount       int       `json:"installment_count"`
}

// SubscriptionStatusEvent covers suspension and reactivation.
type SubscriptionStatusEvent struct {
	SubscriptionID uuid.UUID                `json:"subscription_id"`
	CustomerID     uuid.UUID                `json:"customer_id"`
	PhoneNumber    string                   `json:"phone_number"`
	Status         enums.SubscriptionStatus `json:"status"`
	Reason         string                   `json:"reason,omitempty"`
}

// PaymentSettledEvent is emitted once per successful payment attempt.
type PaymentSettledEvent struct {
	AttemptID        uuid.UUID  `json:"attempt_id"`
	InvoiceID        uuid.UUID  `json:"invoice_id"`
	CustomerID       uuid.UUID  `json:"customer_id"`
	SubscriptionID   *uuid.UUID `json:"subscription_id,omitempty"`
	AmountMinor      int64      `json:"amount_minor"`
	GatewayReference string     `json:"gateway_reference,omitempty"`
	SettledAt        time.Time  `json:"settled_at"`
}

// PaymentFailedEvent is emitted on every failed charge. Exhausted is set when no retry remains.
type PaymentFailedEvent struct {
	AttemptID     uuid.UUID  `json:"attempt_id"`
	InvoiceID     uuid.UUID  `json:"invoice_id"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	AmountMinor   int64      `json:"amount_minor"`
	AttemptNumber int        `json:"attempt_number"`
	MaxRetries    int        `json:"max_retries"`
	Reason        string     `json:"reason"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	Exhausted     bool       `json:"exhausted"`
}

// ReservationReleasedEvent reports a number returned to the available pool.
type ReservationReleasedEvent struct {
	MsisdnID    uuid.UUID  `json:"msisdn_id"`
	PhoneNumber string     `json:"phone_number"`
	ReservedBy  *uuid.UUID `json:"reserved_by,omitempty"`
	Reason      string     `json:"reason"`
}

// PortingCompletedEvent reports a finished port in either direction.
type PortingCompletedEvent struct {
	PortingRequestID uuid.UUID              `json:"porting_request_id"`
	CustomerID       uuid.UUID              `json:"customer_id"`
	PhoneNumber      string                 `json:"phone_number"`
	Direction        enums.PortingDirection `json:"direction"`
	SubscriptionID   *uuid.UUID             `json:"subscription_id,omitempty"`
}
