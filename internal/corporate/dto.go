package corporate

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

type AccountDTO struct {
	ID               uuid.UUID                    `json:"id"`
	CompanyName      string                       `json:"company_name"`
	TaxID            string                       `json:"tax_id"`
	BillingEmail     string                       `json:"billing_email"`
	AdminCustomerID  uuid.UUID                    `json:"admin_customer_id"`
	CreditLimitMinor int64                        `json:"credit_limit_minor"`
	DiscountPercent  int                          `json:"discount_percent"`
	Status           enums.CorporateAccountStatus `json:"status"`
	Subscriptions    []LineDTO                    `json:"subscriptions,omitempty"`
	CreatedAt        time.Time                    `json:"created_at"`
}

type LineDTO struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	EmployeeName   *string   `json:"employee_name,omitempty"`
	CostCenter     *string   `json:"cost_center,omitempty"`
	AddedAt        time.Time `json:"added_at"`
}

func FromModel(m *models.CorporateAccount) *AccountDTO {
	if m == nil {
		return nil
	}
	return &AccountDTO{
		ID:               m.ID,
		CompanyName:      m.CompanyName,
		TaxID:            m.TaxID,
		BillingEmail:     m.BillingEmail,
		AdminCustomerID:  m.AdminCustomerID,
		CreditLimitMinor: m.CreditLimitMinor,
		DiscountPercent:  m.DiscountPercent,
		Status:           m.Status,
		CreatedAt:        m.CreatedAt,
	}
}

func linesFromModels(rows []models.CorporateSubscription) []LineDTO {
	out := make([]LineDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, LineDTO{
			SubscriptionID: row.SubscriptionID,
			EmployeeName:   row.EmployeeName,
			CostCenter:     row.CostCenter,
			AddedAt:        row.CreatedAt,
		})
	}
	return out
}

type CreateInput struct {
	CompanyName      string    `json:"company_name" validate:"required,max=160"`
	TaxID            string    `json:"tax_id" validate:"required,max=32"`
	BillingEmail     string    `json:"billing_email" validate:"required,email"`
	AdminCustomerID  uuid.UUID `json:"admin_customer_id" validate:"required"`
	CreditLimitMinor int64     `json:"credit_limit_minor" validate:"gte=0"`
	DiscountPercent  int       `json:"discount_percent" validate:"gte=0,lte=50"`
}

type UpdateInput struct {
	BillingEmail     *string                       `json:"billing_email,omitempty" validate:"omitempty,email"`
	CreditLimitMinor *int64                        `json:"credit_limit_minor,omitempty" validate:"omitempty,gte=0"`
	DiscountPercent  *int                          `json:"discount_percent,omitempty" validate:"omitempty,gte=0,lte=50"`
	Status           *enums.CorporateAccountStatus `json:"status,omitempty"`
}

type AddLineInput struct {
	SubscriptionID uuid.UUID `json:"subscription_id" validate:"required"`
	EmployeeName   *string   `json:"employee_name,omitempty" validate:"omitempty,max=120"`
	CostCenter     *string   `json:"cost_center,omitempty" validate:"omitempty,max=60"`
}

// ConsolidatedInvoice is the outcome of one corporate billing run.
type ConsolidatedInvoice struct {
	AccountID           uuid.UUID            `json:"account_id"`
	Lines               int                  `json:"lines"`
	DiscountMinor       int64                `json:"discount_minor"`
	OutstandingMinor    int64                `json:"outstanding_minor"`
	CreditLimitExceeded bool                 `json:"credit_limit_exceeded"`
	Invoice             *invoices.InvoiceDTO `json:"invoice"`
	Payment             *payments.AttemptDTO `json:"payment,omitempty"`
}
