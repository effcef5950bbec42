package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ChargeParams describes an off-session charge against a saved payment method.
type ChargeParams struct {
	CustomerRef     string
	PaymentMethodID string
	AmountMinor     int64
	IdempotencyKey  string
	Metadata        map[string]string
}

// ChargeResult is the outcome of one PaymentIntent. A decline is a result, not an error.
type ChargeResult struct {
	Reference     string
	Succeeded     bool
	Status        string
	FailureReason string
}

// Charge creates and confirms a PaymentIntent off-session.
func (c *Client) Charge(ctx context.Context, in ChargeParams) (ChargeResult, error) {
	if in.AmountMinor <= 0 {
		return ChargeResult{}, errors.New("charge amount must be positive")
	}
	if in.CustomerRef == "" || in.PaymentMethodID == "" {
		return ChargeResult{Status: "requires_payment_method", FailureReason: "no payment method on file"}, nil
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(in.AmountMinor),
		Currency:      stripe.String(c.currency),
		Customer:      stripe.String(in.CustomerRef),
		PaymentMethod: stripe.String(in.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
		Metadata:      in.Metadata,
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	intent, err := c.api.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			result := ChargeResult{Status: "declined", FailureReason: declineReason(stripeErr)}
			if stripeErr.PaymentIntent != nil {
				result.Reference = stripeErr.PaymentIntent.ID
			}
			return result, nil
		}
		return ChargeResult{}, fmt.Errorf("create payment intent: %w", err)
	}

	return resultFromIntent(intent), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (c *Client) ParseWebhook(payload []byte, signature string) (*stripe.Event, error) {
	opts := webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true}
	if c.tolerance > 0 {
		opts.Tolerance = c.tolerance
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.whSecret, opts)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// IntentFromEvent decodes the PaymentIntent carried by a payment_intent.* event.
func IntentFromEvent(event *stripe.Event) (ChargeResult, map[string]string, error) {
	if event == nil || event.Data == nil {
		return ChargeResult{}, nil, errors.New("stripe event data required")
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return ChargeResult{}, nil, fmt.Errorf("decode payment intent: %w", err)
	}
	return resultFromIntent(&intent), intent.Metadata, nil
}

func resultFromIntent(intent *stripe.PaymentIntent) ChargeResult {
	result := ChargeResult{
		Reference: intent.ID,
		Status:    string(intent.Status),
		Succeeded: intent.Status == stripe.PaymentIntentStatusSucceeded,
	}
	if !result.Succeeded {
		result.FailureReason = "payment " + string(intent.Status)
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			result.FailureReason = intent.LastPaymentError.Msg
		}
	}
	return result
}

func declineReason(err *stripe.Error) string {
	switch {
	case err.Msg != "":
		return err.Msg
	case err.DeclineCode != "":
		return string(err.DeclineCode)
	default:
		return string(err.Code)
	}
}
