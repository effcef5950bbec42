package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/telcobill-backend/pkg/config"
)

func TestSubscriptionSetsSkipBlank(t *testing.T) {
	cfg := config.PubSubConfig{
		FulfillmentSubscription:  "fulfillment-sub",
		NotificationSubscription: " ",
		AnalyticsSubscription:    "analytics-sub",
	}
	assert.Equal(t, []string{"fulfillment-sub"}, WorkerSubscriptions(cfg))
	assert.Equal(t, []string{"analytics-sub"}, AnalyticsSubscriptions(cfg))

	cfg.AnalyticsOrdersSubscription = "analytics-orders-sub"
	assert.Equal(t, []string{"analytics-sub", "analytics-orders-sub"}, AnalyticsSubscriptions(cfg))
}

func TestResourceNames(t *testing.T) {
	c := &Client{projectID: "telco-prod"}
	assert.Equal(t, "projects/telco-prod/subscriptions/fulfillment-sub", c.resource("subscriptions", " fulfillment-sub "))
	assert.Equal(t, "projects/telco-prod/topics/tb-billing", c.resource("topics", "tb-billing"))

	full := "projects/other/subscriptions/x"
	assert.Equal(t, full, c.resource("subscriptions", full))
	assert.Equal(t, "projects/telco-prod/topics/"+full, c.resource("topics", full), "kind must match to pass through")
}

func TestNewClientValidatesInput(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil, Resources{Topics: []string{"t"}})
	assert.EqualError(t, err, "gcp project id is required")

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil, Resources{Subscriptions: []string{" "}})
	assert.Error(t, err)
}

func TestMissingClassifiesNotFound(t *testing.T) {
	assert.EqualError(t, missing("topic", "tb-orders", status.Error(codes.NotFound, "gone")), `topic "tb-orders" does not exist`)

	denied := status.Error(codes.PermissionDenied, "nope")
	err := missing("subscription", "s", denied)
	assert.True(t, errors.Is(err, denied))
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Subscriber("s"))
	assert.Nil(t, c.Publisher("t"))
	assert.Error(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}
