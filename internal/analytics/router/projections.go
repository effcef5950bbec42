package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/telcobill-backend/internal/analytics/writer"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
)

// projection turns one decoded event of type T into a billing_events row.
// fill sets the event specific columns and returns extra log fields.
type projection[T any] struct {
	writer Writer
	logg   *logger.Logger
	fill   func(event *T, row *types.BillingEventRow) map[string]any
}

func project[T any](w Writer, logg *logger.Logger, fill func(*T, *types.BillingEventRow) map[string]any) route {
	return route{
		decodeInto: func() any { return new(T) },
		handler:    &projection[T]{writer: w, logg: logg, fill: fill},
	}
}

func (p *projection[T]) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*T)
	if !ok {
		return fmt.Errorf("%w: %s decoded as %T", ErrMalformedPayload, envelope.EventType, payload)
	}
	encoded, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return fmt.Errorf("encode payload json: %w", err)
	}
	row := types.BillingEventRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: envelope.OccurredAt.UTC(),
		Payload:    encoded,
	}
	fields := p.fill(event, &row)

	ctx = p.logg.WithFields(ctx, fields)
	if err := p.writer.Insert(ctx, row); err != nil {
		p.logg.Error(ctx, "billing event row not written", err)
		return err
	}
	p.logg.Debug(ctx, row.EventType+" row written")
	return nil
}

// defaultRoutes lists the events streamed to BigQuery. Amounts are the money
// the event moved; plan change credits are negative so revenue sums net out.
func defaultRoutes(w Writer, logg *logger.Logger) map[string]route {
	return map[string]route{
		"order_placed": project(w, logg, func(e *payloads.OrderPlacedEvent, row *types.BillingEventRow) map[string]any {
			row.CustomerID = id(e.CustomerID)
			row.SubscriptionID = id(e.SubscriptionID)
			row.InvoiceID = id(e.InvoiceID)
			row.PlanID = id(e.PlanID)
			row.AmountMinor = amount(e.TotalMinor)
			return map[string]any{"subscription_id": e.SubscriptionID, "msisdn": e.PhoneNumber}
		}),
		"invoice_created": project(w, logg, func(e *payloads.InvoiceCreatedEvent, row *types.BillingEventRow) map[string]any {
			row.CustomerID = id(e.CustomerID)
			row.SubscriptionID = optionalID(e.SubscriptionID)
			row.InvoiceID = id(e.InvoiceID)
			row.AmountMinor = amount(e.TotalMinor)
			row.TaxMinor = amount(e.TaxMinor)
			row.Reason = text(e.Reason)
			return map[string]any{"invoice_id": e.InvoiceID, "invoice_number": e.InvoiceNumber}
		}),
		"payment_settled": project(w, logg, func(e *payloads.PaymentSettledEvent, row *types.BillingEventRow) map[string]any {
			if !e.SettledAt.IsZero() {
				row.OccurredAt = e.SettledAt.UTC()
			}
			row.CustomerID = id(e.CustomerID)
			row.SubscriptionID = optionalID(e.SubscriptionID)
			row.InvoiceID = id(e.InvoiceID)
			row.AmountMinor = amount(e.AmountMinor)
			return map[string]any{"attempt_id": e.AttemptID, "invoice_id": e.InvoiceID}
		}),
		"payment_failed": project(w, logg, func(e *payloads.PaymentFailedEvent, row *types.BillingEventRow) map[string]any {
			row.CustomerID = id(e.CustomerID)
			row.InvoiceID = id(e.InvoiceID)
			row.AmountMinor = amount(e.AmountMinor)
			row.Reason = text(e.Reason)
			return map[string]any{"attempt_id": e.AttemptID, "attempt_number": e.AttemptNumber, "exhausted": e.Exhausted}
		}),
		"plan_changed": project(w, logg, func(e *payloads.PlanChangedEvent, row *types.BillingEventRow) map[string]any {
			row.CustomerID = id(e.CustomerID)
			row.SubscriptionID = id(e.SubscriptionID)
			row.InvoiceID = optionalID(e.InvoiceID)
			row.PlanID = id(e.NewPlanID)
			row.AmountMinor = amount(e.NetMinor)
			return map[string]any{"subscription_id": e.SubscriptionID, "old_plan_id": e.OldPlanID, "new_plan_id": e.NewPlanID}
		}),
		"contract_created": project(w, logg, func(e *payloads.ContractCreatedEvent, row *types.BillingEventRow) map[string]any {
			row.CustomerID = id(e.CustomerID)
			row.AmountMinor = amount(e.DevicePriceMinor - e.DownPaymentMinor)
			row.Reason = text(e.DeviceName)
			return map[string]any{"contract_id": e.ContractID, "installments": e.InstallmentCount}
		}),
		"subscription_suspended":   project(w, logg, subscriptionStatus),
		"subscription_reactivated": project(w, logg, subscriptionStatus),
		"porting_completed": project(w, logg, func(e *payloads.PortingCompletedEvent, row *types.BillingEventRow) map[string]any {
			row.CustomerID = id(e.CustomerID)
			row.SubscriptionID = optionalID(e.SubscriptionID)
			row.Reason = text(string(e.Direction))
			return map[string]any{"porting_request_id": e.PortingRequestID, "direction": e.Direction}
		}),
	}
}

func subscriptionStatus(e *payloads.SubscriptionStatusEvent, row *types.BillingEventRow) map[string]any {
	row.CustomerID = id(e.CustomerID)
	row.SubscriptionID = id(e.SubscriptionID)
	row.Reason = text(e.Reason)
	return map[string]any{"subscription_id": e.SubscriptionID, "status": e.Status}
}

// text is nil for blank strings so the column stays NULL.
func text(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func id(v uuid.UUID) *string {
	if v == uuid.Nil {
		return nil
	}
	s := v.String()
	return &s
}

func optionalID(v *uuid.UUID) *string {
	if v == nil {
		return nil
	}
	return id(*v)
}

func amount(v int64) *int64 {
	return &v
}
