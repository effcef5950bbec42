package stripe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/angelmondragon/telcobill-backend/pkg/config"
)

func TestNewClientRejectsBadSettings(t *testing.T) {
	cases := map[string]config.StripeConfig{
		"missing api key":     {Secret: "whsec"},
		"missing secret":      {APIKey: "sk_test_1"},
		"live key in test":    {APIKey: "sk_live_1", Secret: "whsec", Env: "test"},
		"test key in live":    {APIKey: "sk_test_1", Secret: "whsec", Env: "live"},
		"unknown environment": {APIKey: "sk_test_1", Secret: "whsec", Env: "staging"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewClient(context.Background(), cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestNewClientNormalizesEnvironment(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{APIKey: "rk_live_1", Secret: "whsec", Env: " LIVE "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "live", client.Environment())
	assert.Equal(t, "inr", client.currency)

	var none *Client
	assert.Empty(t, none.Environment())
}

func TestChargeWithoutPaymentMethodIsADecline(t *testing.T) {
	client := &Client{currency: "inr"}
	result, err := client.Charge(context.Background(), ChargeParams{AmountMinor: 41182})
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.NotEmpty(t, result.FailureReason)

	_, err = client.Charge(context.Background(), ChargeParams{CustomerRef: "cus_1", PaymentMethodID: "pm_1"})
	assert.Error(t, err, "zero amount")
}

const failedIntentEvent = `{
	"id": "evt_1",
	"object": "event",
	"type": "payment_intent.payment_failed",
	"data": {"object": {
		"id": "pi_123",
		"object": "payment_intent",
		"status": "requires_payment_method",
		"metadata": {"payment_attempt_id": "attempt-1"},
		"last_payment_error": {"message": "Your card was declined."}
	}}
}`

func sign(payload []byte, secret string, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	}).Header
}

func TestParseWebhookDecodesFailedIntent(t *testing.T) {
	client := &Client{whSecret: "whsec_test"}
	payload := []byte(failedIntentEvent)

	event, err := client.ParseWebhook(payload, sign(payload, "whsec_test", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "payment_intent.payment_failed", string(event.Type))

	result, metadata, err := IntentFromEvent(event)
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, "pi_123", result.Reference)
	assert.Equal(t, "Your card was declined.", result.FailureReason)
	assert.Equal(t, "attempt-1", metadata["payment_attempt_id"])
}

func TestParseWebhookRejectsForgedOrStaleSignatures(t *testing.T) {
	client := &Client{whSecret: "whsec_test", tolerance: time.Minute}
	payload := []byte(failedIntentEvent)

	_, err := client.ParseWebhook(payload, "t=1,v1=bad")
	assert.Error(t, err)

	_, err = client.ParseWebhook(payload, sign(payload, "whsec_other", time.Now()))
	assert.Error(t, err)

	_, err = client.ParseWebhook(payload, sign(payload, "whsec_test", time.Now().Add(-10*time.Minute)))
	assert.Error(t, err)
}
