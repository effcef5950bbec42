package checkout

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/msisdn"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

// SimOrderInput picks a reserved or available number and the plan to start on.
type SimOrderInput struct {
	MsisdnID  uuid.UUID `json:"msisdn_id" validate:"required"`
	PlanID    uuid.UUID `json:"plan_id" validate:"required"`
	AutoRenew bool      `json:"auto_renew"`
}

// OrderQuote is the priced order before anything is claimed.
type OrderQuote struct {
	LineItems     types.LineItems `json:"line_items"`
	SubtotalMinor int64           `json:"subtotal_minor"`
	TaxMinor      int64           `json:"tax_minor"`
	TotalMinor    int64           `json:"total_minor"`
}

type OrderResult struct {
	Subscription *subscriptions.SubscriptionDTO `json:"subscription"`
	Number       *msisdn.NumberDTO              `json:"number"`
	Invoice      *invoices.InvoiceDTO           `json:"invoice"`
	Payment      *payments.AttemptDTO           `json:"payment,omitempty"`
}
