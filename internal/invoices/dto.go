package invoices

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

type InvoiceDTO struct {
	ID             uuid.UUID           `json:"id"`
	InvoiceNumber  string              `json:"invoice_number"`
	CustomerID     uuid.UUID           `json:"customer_id"`
	SubscriptionID *uuid.UUID          `json:"subscription_id,omitempty"`
	SubtotalMinor  int64               `json:"subtotal_minor"`
	TaxMinor       int64               `json:"tax_minor"`
	TotalMinor     int64               `json:"total_minor"`
	Status         enums.InvoiceStatus `json:"status"`
	LineItems      types.LineItems     `json:"line_items"`
	DueDate        time.Time           `json:"due_date"`
	PaidAt         *time.Time          `json:"paid_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

func FromModel(m *models.Invoice) *InvoiceDTO {
	if m == nil {
		return nil
	}
	items := m.LineItems
	if items == nil {
		items = types.LineItems{}
	}
	return &InvoiceDTO{
		ID:             m.ID,
		InvoiceNumber:  m.InvoiceNumber,
		CustomerID:     m.CustomerID,
		SubscriptionID: m.SubscriptionID,
		SubtotalMinor:  m.SubtotalMinor,
		TaxMinor:       m.TaxMinor,
		TotalMinor:     m.TotalMinor,
		Status:         m.Status,
		LineItems:      items,
		DueDate:        m.DueDate,
		PaidAt:         m.PaidAt,
		CreatedAt:      m.CreatedAt,
	}
}

func fromModels(rows []models.Invoice) []InvoiceDTO {
	out := make([]InvoiceDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
