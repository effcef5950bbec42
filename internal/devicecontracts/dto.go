package devicecontracts

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/internal/billing"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

type ContractDTO struct {
	ID                       uuid.UUID                  `json:"id"`
	CustomerID               uuid.UUID                  `json:"customer_id"`
	SubscriptionID           *uuid.UUID                 `json:"subscription_id,omitempty"`
	DeviceName               string                     `json:"device_name"`
	DevicePriceMinor         int64                      `json:"device_price_minor"`
	DownPaymentMinor         int64                      `json:"down_payment_minor"`
	InstallmentAmountMinor   int64                      `json:"installment_amount_minor"`
	InstallmentCount         int                        `json:"installment_count"`
	InstallmentsPaid         int                        `json:"installments_paid"`
	RemainingInstallments    int                        `json:"remaining_installments"`
	EarlyTerminationFeeMinor int64                      `json:"early_termination_fee_minor"`
	NextPaymentDate          *time.Time                 `json:"next_payment_date,omitempty"`
	PendingInvoiceID         *uuid.UUID                 `json:"pending_invoice_id,omitempty"`
	Status                   enums.DeviceContractStatus `json:"status"`
	TerminatedAt             *time.Time                 `json:"terminated_at,omitempty"`
	CreatedAt                time.Time                  `json:"created_at"`
}

func FromModel(m *models.DeviceContract) *ContractDTO {
	if m == nil {
		return nil
	}
	return &ContractDTO{
		ID:                       m.ID,
		CustomerID:               m.CustomerID,
		SubscriptionID:           m.SubscriptionID,
		DeviceName:               m.DeviceName,
		DevicePriceMinor:         m.DevicePriceMinor,
		DownPaymentMinor:         m.DownPaymentMinor,
		InstallmentAmountMinor:   m.InstallmentAmountMinor,
		InstallmentCount:         m.InstallmentCount,
		InstallmentsPaid:         m.InstallmentsPaid,
		RemainingInstallments:    m.RemainingInstallments(),
		EarlyTerminationFeeMinor: m.EarlyTerminationFeeMinor,
		NextPaymentDate:          m.NextPaymentDate,
		PendingInvoiceID:         m.PendingInvoiceID,
		Status:                   m.Status,
		TerminatedAt:             m.TerminatedAt,
		CreatedAt:                m.CreatedAt,
	}
}

type CreateInput struct {
	DeviceName       string     `json:"device_name" validate:"required,max=120"`
	DevicePriceMinor int64      `json:"device_price_minor" validate:"gt=0"`
	DownPaymentMinor int64      `json:"down_payment_minor" validate:"gte=0"`
	InstallmentCount int        `json:"installment_count" validate:"gte=1,lte=36"`
	SubscriptionID   *uuid.UUID `json:"subscription_id,omitempty"`
}

// ContractResult carries the contract with whatever invoice the operation raised.
type ContractResult struct {
	Contract *ContractDTO         `json:"contract"`
	Invoice  *invoices.InvoiceDTO `json:"invoice,omitempty"`
	Payment  *payments.AttemptDTO `json:"payment,omitempty"`
}

type QuoteDTO struct {
	billing.Installment
	FirstPaymentDate time.Time `json:"first_payment_date"`
	TotalPayable     int64     `json:"total_payable"`
}

type TerminationQuoteDTO struct {
	ContractID            uuid.UUID `json:"contract_id"`
	RemainingInstallments int       `json:"remaining_installments"`
	AmountDue             int64     `json:"amount_due"`
}
