package stripewebhook

import (
	"context"

	"github.com/stripe/stripe-go/v82"

	"github.com/angelmondragon/telcobill-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/telcobill-backend/pkg/stripe"
)

type gatewayEventHandler interface {
	HandleGatewayEvent(ctx context.Context, event payments.GatewayEvent) error
}

type ServiceParams struct {
	Payments gatewayEventHandler
	Logger   *logger.Logger
}

// Service translates Stripe PaymentIntent events into payment attempt outcomes.
type Service struct {
	payments gatewayEventHandler
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{payments: params.Payments, logg: logg}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
	default:
		s.logg.Debug(s.logg.WithField(ctx, "stripe_event_type", string(event.Type)), "stripe event ignored")
		return nil
	}

	result, metadata, err := pkgstripe.IntentFromEvent(event)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}

	gatewayEvent := payments.GatewayEvent{
		AttemptID:     metadata[payments.MetadataAttemptID],
		Reference:     result.Reference,
		Succeeded:     event.Type == stripe.EventTypePaymentIntentSucceeded,
		FailureReason: result.FailureReason,
	}
	if !gatewayEvent.Succeeded && gatewayEvent.FailureReason == "" {
		gatewayEvent.FailureReason = "payment failed"
	}
	return s.payments.HandleGatewayEvent(ctx, gatewayEvent)
}
