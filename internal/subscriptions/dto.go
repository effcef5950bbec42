package subscriptions

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/internal/billing"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/internal/plans"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

type SubscriptionDTO struct {
	ID                  uuid.UUID                `json:"id"`
	CustomerID          uuid.UUID                `json:"customer_id"`
	PlanID              uuid.UUID                `json:"plan_id"`
	MsisdnID            uuid.UUID                `json:"msisdn_id"`
	PhoneNumber         string                   `json:"phone_number"`
	Status              enums.SubscriptionStatus `json:"status"`
	StartDate           time.Time                `json:"start_date"`
	EndDate             time.Time                `json:"end_date"`
	DataBalanceMB       int64                    `json:"data_balance_mb"`
	VoiceBalanceMinutes int64                    `json:"voice_balance_minutes"`
	SMSBalance          int64                    `json:"sms_balance"`
	AutoRenew           bool                     `json:"auto_renew"`
	SuspendedAt         *time.Time               `json:"suspended_at,omitempty"`
	CancelledAt         *time.Time               `json:"cancelled_at,omitempty"`
	Plan                *plans.PlanDTO           `json:"plan,omitempty"`
}

func FromModel(m *models.Subscription) *SubscriptionDTO {
	if m == nil {
		return nil
	}
	return &SubscriptionDTO{
		ID:                  m.ID,
		CustomerID:          m.CustomerID,
		PlanID:              m.PlanID,
		MsisdnID:            m.MsisdnID,
		PhoneNumber:         m.PhoneNumber,
		Status:              m.Status,
		StartDate:           m.StartDate,
		EndDate:             m.EndDate,
		DataBalanceMB:       m.DataBalanceMB,
		VoiceBalanceMinutes: m.VoiceBalanceMinutes,
		SMSBalance:          m.SMSBalance,
		AutoRenew:           m.AutoRenew,
		SuspendedAt:         m.SuspendedAt,
		CancelledAt:         m.CancelledAt,
	}
}

// BillingResult is returned by every operation that invoices the customer.
type BillingResult struct {
	Subscription *SubscriptionDTO     `json:"subscription"`
	Invoice      *invoices.InvoiceDTO `json:"invoice,omitempty"`
	Payment      *payments.AttemptDTO `json:"payment,omitempty"`
}

type TopUpInput struct {
	DataMB       int64 `json:"data_mb" validate:"gte=0"`
	VoiceMinutes int64 `json:"voice_minutes" validate:"gte=0"`
	SMS          int64 `json:"sms" validate:"gte=0"`
}

type PlanChangeInput struct {
	NewPlanID uuid.UUID `json:"new_plan_id" validate:"required"`
}

type PlanChangePreview struct {
	SubscriptionID uuid.UUID         `json:"subscription_id"`
	CurrentPlan    *plans.PlanDTO    `json:"current_plan"`
	NewPlan        *plans.PlanDTO    `json:"new_plan"`
	RenewalDate    time.Time         `json:"renewal_date"`
	Proration      billing.Proration `json:"proration"`
	CreditApplied  int64             `json:"credit_applied"`
	AmountDue      int64             `json:"amount_due"`
}

type PlanChangeResult struct {
	BillingResult
	Proration billing.Proration `json:"proration"`
}

// ExpiryReport summarizes one subscription_expiry run.
type ExpiryReport struct {
	Expired int `json:"expired"`
	Renewed int `json:"renewed"`
}
