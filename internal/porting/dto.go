package porting

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

type RequestDTO struct {
	ID                uuid.UUID              `json:"id"`
	CustomerID        uuid.UUID              `json:"customer_id"`
	PhoneNumber       string                 `json:"phone_number"`
	Direction         enums.PortingDirection `json:"direction"`
	DonorOperator     string                 `json:"donor_operator"`
	RecipientOperator string                 `json:"recipient_operator"`
	PortingCode       string                 `json:"porting_code"`
	Status            enums.PortingStatus    `json:"status"`
	PlanID            *uuid.UUID             `json:"plan_id,omitempty"`
	SubscriptionID    *uuid.UUID             `json:"subscription_id,omitempty"`
	RejectionReason   *string                `json:"rejection_reason,omitempty"`
	ScheduledAt       *time.Time             `json:"scheduled_at,omitempty"`
	CompletedAt       *time.Time             `json:"completed_at,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

func FromModel(m *models.PortingRequest) *RequestDTO {
	if m == nil {
		return nil
	}
	return &RequestDTO{
		ID:                m.ID,
		CustomerID:        m.CustomerID,
		PhoneNumber:       m.PhoneNumber,
		Direction:         m.Direction,
		DonorOperator:     m.DonorOperator,
		RecipientOperator: m.RecipientOperator,
		PortingCode:       m.PortingCode,
		Status:            m.Status,
		PlanID:            m.PlanID,
		SubscriptionID:    m.SubscriptionID,
		RejectionReason:   m.RejectionReason,
		ScheduledAt:       m.ScheduledAt,
		CompletedAt:       m.CompletedAt,
		CreatedAt:         m.CreatedAt,
	}
}

// CreateInput covers both directions. Port-ins name the number, the donor, its porting code
// and the plan to start on. Port-outs name the line leaving and the recipient operator.
type CreateInput struct {
	Direction         enums.PortingDirection `json:"direction" validate:"required,oneof=port_in port_out"`
	PhoneNumber       string                 `json:"phone_number,omitempty"`
	DonorOperator     string                 `json:"donor_operator,omitempty"`
	RecipientOperator string                 `json:"recipient_operator,omitempty"`
	PortingCode       string                 `json:"porting_code,omitempty"`
	PlanID            *uuid.UUID             `json:"plan_id,omitempty"`
	SubscriptionID    *uuid.UUID             `json:"subscription_id,omitempty"`
}

type ApproveInput struct {
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

type RejectInput struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type CompletionResult struct {
	Request *RequestDTO          `json:"request"`
	Invoice *invoices.InvoiceDTO `json:"invoice,omitempty"`
	Payment *payments.AttemptDTO `json:"payment,omitempty"`
}
