package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v82"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

// Stripe documents payloads well under this; anything larger is not a real delivery.
const maxWebhookPayload = 64 << 10

const signatureHeader = "Stripe-Signature"

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// StripeWebhookGuard remembers processed event IDs.
type StripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (*stripe.Event, error)
}

type webhookAck struct {
	Status string `json:"status"`
}

// StripeWebhook settles payment attempts from payment_intent deliveries. An
// event ID seen before is acknowledged without reprocessing. When the handler
// fails the ID is forgotten so Stripe's redelivery is processed.
func StripeWebhook(svc StripeWebhookService, verifier WebhookVerifier, guard StripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	ready := svc != nil && verifier != nil && guard != nil
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !ready {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhooks not configured"))
			return
		}

		event, err := verifiedEvent(r, verifier)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"stripe_event_id":   event.ID,
				"stripe_event_type": string(event.Type),
			})
		}

		seen, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook replay"))
			return
		}
		if seen {
			responses.WriteSuccess(w, webhookAck{Status: "duplicate"})
			return
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			if releaseErr := guard.Delete(ctx, event.ID); releaseErr != nil && logg != nil {
				logg.Warn(logg.WithField(ctx, "error", releaseErr.Error()), "could not release stripe event for redelivery")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, "stripe event processed")
		}
		responses.WriteSuccess(w, webhookAck{Status: "processed"})
	}
}

// verifiedEvent reads the body and checks its signature. Signature problems
// are validation errors so Stripe sees a 400.
func verifiedEvent(r *http.Request, verifier WebhookVerifier) (*stripe.Event, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookPayload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body")
	}
	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	event, err := verifier.ParseWebhook(payload, signature)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature")
	}
	return event, nil
}
