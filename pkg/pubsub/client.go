package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/telcobill-backend/pkg/config"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

// Resources lists the topics and subscriptions a process depends on. Only
// these are verified at startup and by Ping.
type Resources struct {
	Topics        []string
	Subscriptions []string
}

func (r Resources) empty() bool {
	return len(r.Topics) == 0 && len(r.Subscriptions) == 0
}

type Client struct {
	ps        *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	needs     Resources
}

// NewClient dials Pub/Sub and fails when any required resource is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, needs Resources) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errors.New("gcp project id is required")
	}
	needs = Resources{Topics: compact(needs.Topics), Subscriptions: compact(needs.Subscriptions)}
	if needs.empty() {
		return nil, errors.New("pubsub: no topics or subscriptions requested")
	}

	var opts []option.ClientOption
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(raw)))
	}
	ps, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{ps: ps, projectID: projectID, cfg: cfg, needs: needs}
	if err := c.verify(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topics":        needs.Topics,
			"subscriptions": needs.Subscriptions,
		}), "pubsub client initialized")
	}
	return c, nil
}

func compact(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (c *Client) verify(ctx context.Context) error {
	for _, name := range c.needs.Topics {
		_, err := c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.resource("topics", name)})
		if err != nil {
			return missing("topic", name, err)
		}
	}
	for _, name := range c.needs.Subscriptions {
		_, err := c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.resource("subscriptions", name)})
		if err != nil {
			return missing("subscription", name, err)
		}
	}
	return nil
}

func missing(kind, name string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// Subscriber returns a handle for a subscription ID or full resource name with
// the configured flow control applied. Blank names yield nil.
func (c *Client) Subscriber(name string) *pubsub.Subscriber {
	if c == nil || c.ps == nil || strings.TrimSpace(name) == "" {
		return nil
	}
	sub := c.ps.Subscriber(c.resource("subscriptions", name))
	if c.cfg.MaxOutstandingMessages > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstandingMessages
	}
	if c.cfg.ReceiveGoroutines > 0 {
		sub.ReceiveSettings.NumGoroutines = c.cfg.ReceiveGoroutines
	}
	return sub
}

// Publisher returns a handle for a topic ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.ps == nil || strings.TrimSpace(name) == "" {
		return nil
	}
	return c.ps.Publisher(c.resource("topics", name))
}

// Ping re-checks the resources requested at construction.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.verify(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

// resource expands a short ID to projects/<project>/<kind>/<id>. Names already
// in resource form pass through.
func (c *Client) resource(kind, name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	return "projects/" + c.projectID + "/" + kind + "/" + name
}

// WorkerSubscriptions are the subscriptions the fulfillment and notification consumers read.
func WorkerSubscriptions(cfg config.PubSubConfig) []string {
	return compact([]string{cfg.FulfillmentSubscription, cfg.NotificationSubscription})
}

// AnalyticsSubscriptions are the billing topic subscription and, when set, the
// orders topic subscription feeding the analytics sink.
func AnalyticsSubscriptions(cfg config.PubSubConfig) []string {
	return compact([]string{cfg.AnalyticsSubscription, cfg.AnalyticsOrdersSubscription})
}
