package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// BillingEventRow mirrors the billing_events BigQuery schema. AmountMinor is the money the
// event moved: invoice total, settled or failed charge, or plan change net.
type BillingEventRow struct {
	EventID        string             `bigquery:"event_id"`
	EventType      string             `bigquery:"event_type"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	CustomerID     *string            `bigquery:"customer_id"`
	SubscriptionID *string            `bigquery:"subscription_id"`
	InvoiceID      *string            `bigquery:"invoice_id"`
	PlanID         *string            `bigquery:"plan_id"`
	AmountMinor    *int64             `bigquery:"amount_minor"`
	TaxMinor       *int64             `bigquery:"tax_minor"`
	Reason         *string            `bigquery:"reason"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}
