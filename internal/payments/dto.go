package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

type AttemptDTO struct {
	ID               uuid.UUID                  `json:"id"`
	InvoiceID        uuid.UUID                  `json:"invoice_id"`
	CustomerID       uuid.UUID                  `json:"customer_id"`
	SubscriptionID   *uuid.UUID                 `json:"subscription_id,omitempty"`
	AmountMinor      int64                      `json:"amount_minor"`
	AttemptNumber    int                        `json:"attempt_number"`
	MaxRetries       int                        `json:"max_retries"`
	Status           enums.PaymentAttemptStatus `json:"status"`
	NextRetryAt      *time.Time                 `json:"next_retry_at,omitempty"`
	GatewayReference *string                    `json:"gateway_reference,omitempty"`
	FailureReason    *string                    `json:"failure_reason,omitempty"`
	LastAttemptedAt  *time.Time                 `json:"last_attempted_at,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
}

func FromModel(m *models.PaymentAttempt) *AttemptDTO {
	if m == nil {
		return nil
	}
	return &AttemptDTO{
		ID:               m.ID,
		InvoiceID:        m.InvoiceID,
		CustomerID:       m.CustomerID,
		SubscriptionID:   m.SubscriptionID,
		AmountMinor:      m.AmountMinor,
		AttemptNumber:    m.AttemptNumber,
		MaxRetries:       m.MaxRetries,
		Status:           m.Status,
		NextRetryAt:      m.NextRetryAt,
		GatewayReference: m.GatewayReference,
		FailureReason:    m.FailureReason,
		LastAttemptedAt:  m.LastAttemptedAt,
		CreatedAt:        m.CreatedAt,
	}
}

// RetryReport summarizes one payment_retry run.
type RetryReport struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
}

// GatewayEvent is an asynchronous charge result delivered by webhook.
type GatewayEvent struct {
	AttemptID     string
	Reference     string
	Succeeded     bool
	FailureReason string
}
