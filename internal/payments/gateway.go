package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/stripe"
)

// MetadataAttemptID is the PaymentIntent metadata key webhooks use to find the attempt.
const MetadataAttemptID = "payment_attempt_id"

// DeclineTestPaymentMethod makes the sandbox gateway decline, mirroring Stripe's test card.
const DeclineTestPaymentMethod = "pm_card_chargeDeclined"

// ChargeRequest is one collection try against the customer's saved payment method.
type ChargeRequest struct {
	AttemptID       uuid.UUID
	InvoiceID       uuid.UUID
	CustomerRef     string
	PaymentMethodID string
	AmountMinor     int64
	IdempotencyKey  string
}

// ChargeOutcome mirrors stripe.ChargeResult so callers do not import the SDK wrapper.
type ChargeOutcome struct {
	Reference     string
	Succeeded     bool
	FailureReason string
}

// Gateway charges money. A decline is an outcome; an error means the gateway could not
// be reached or rejected the request itself.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeOutcome, error)
}

type stripeCharger interface {
	Charge(ctx context.Context, in stripe.ChargeParams) (stripe.ChargeResult, error)
}

// StripeGateway adapts the Stripe client to Gateway.
type StripeGateway struct {
	client stripeCharger
}

func NewStripeGateway(client stripeCharger) *StripeGateway {
	return &StripeGateway{client: client}
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeOutcome, error) {
	result, err := g.client.Charge(ctx, stripe.ChargeParams{
		CustomerRef:     req.CustomerRef,
		PaymentMethodID: req.PaymentMethodID,
		AmountMinor:     req.AmountMinor,
		IdempotencyKey:  req.IdempotencyKey,
		Metadata: map[string]string{
			MetadataAttemptID: req.AttemptID.String(),
			"invoice_id":      req.InvoiceID.String(),
		},
	})
	if err != nil {
		return ChargeOutcome{}, err
	}
	return ChargeOutcome{Reference: result.Reference, Succeeded: result.Succeeded, FailureReason: result.FailureReason}, nil
}

// SandboxGateway approves every charge except the decline test method. It backs dev
// environments without Stripe keys.
type SandboxGateway struct{}

func (SandboxGateway) Charge(_ context.Context, req ChargeRequest) (ChargeOutcome, error) {
	ref := "sandbox_" + strings.ReplaceAll(req.AttemptID.String(), "-", "")
	if req.PaymentMethodID == DeclineTestPaymentMethod {
		return ChargeOutcome{Reference: ref, FailureReason: "Your card was declined."}, nil
	}
	return ChargeOutcome{Reference: ref, Succeeded: true}, nil
}
