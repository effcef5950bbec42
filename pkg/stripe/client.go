package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/angelmondragon/telcobill-backend/pkg/config"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

const defaultCurrency = "inr"

// keyPrefixes maps each environment to the secret and restricted key prefixes it accepts.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

// Client charges saved payment methods and verifies webhook deliveries.
type Client struct {
	api       *stripe.Client
	env       string
	currency  string
	whSecret  string
	tolerance time.Duration
}

type settings struct {
	env, apiKey, secret, currency string
}

func readSettings(cfg config.StripeConfig) (settings, error) {
	s := settings{
		env:      cfg.Environment(),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		secret:   strings.TrimSpace(cfg.Secret),
		currency: strings.ToLower(strings.TrimSpace(cfg.Currency)),
	}
	prefixes, known := keyPrefixes[s.env]
	switch {
	case !known:
		return settings{}, fmt.Errorf("stripe: unknown environment %q (want test or live)", s.env)
	case s.apiKey == "":
		return settings{}, errors.New("stripe: api key is required")
	case s.secret == "":
		return settings{}, errors.New("stripe: webhook secret is required")
	}
	if !hasAnyPrefix(s.apiKey, prefixes) {
		return settings{}, fmt.Errorf("stripe: %s environment needs a %s key", s.env, s.env)
	}
	if s.currency == "" {
		s.currency = defaultCurrency
	}
	return s, nil
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// NewClient refuses a live key in test mode and the reverse.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	s, err := readSettings(cfg)
	if err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env": s.env,
			"currency":   s.currency,
		}), "stripe client ready")
	}
	return &Client{
		api:       stripe.NewClient(s.apiKey, nil),
		env:       s.env,
		currency:  s.currency,
		whSecret:  s.secret,
		tolerance: cfg.WebhookTolerance,
	}, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.env
}
