package main

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/telcobill-backend/internal/app"
	"github.com/angelmondragon/telcobill-backend/internal/consumers/fulfillment"
	"github.com/angelmondragon/telcobill-backend/internal/msisdn"
	"github.com/angelmondragon/telcobill-backend/internal/notifications"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/metrics"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/delivery"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/telcobill-backend/pkg/pubsub"
)

func main() {
	proc := app.Start("worker")
	defer proc.Shutdown()
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient := proc.Database(boot)
	redisClient := proc.Redis(boot)

	pubsubClient, err := pubsub.NewClient(boot, cfg.GCP, cfg.PubSub, logg, pubsub.Resources{
		Subscriptions: pubsub.WorkerSubscriptions(cfg.PubSub),
	})
	proc.Must(boot, "pubsub", err)
	proc.OnShutdown("pubsub client", pubsubClient.Close)

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	proc.Must(boot, "idempotency manager", err)

	conn := dbClient.DB()
	fulfiller, err := fulfillment.NewFulfiller(dbClient, subscriptions.NewRepository(conn), msisdn.NewRepository(conn), func() time.Time { return time.Now().UTC() })
	proc.Must(boot, "fulfiller", err)
	fulfillmentHandler, err := fulfillment.NewHandler(fulfiller)
	proc.Must(boot, "fulfillment handler", err)
	notificationHandler, err := notifications.NewEventHandler(notifications.NewRepository(conn))
	proc.Must(boot, "notification handler", err)

	consumerMetrics := metrics.NewConsumerMetrics(prometheus.DefaultRegisterer)
	loop := func(name, subscription string, handler delivery.Handler, accepts func(enums.OutboxEventType) bool) *delivery.Loop {
		l, err := delivery.NewLoop(delivery.LoopParams{
			Name:         name,
			Subscription: pubsubClient.Subscriber(subscription),
			Handler:      handler,
			Dedupe:       manager.Scope(name),
			Logger:       logg,
			Metrics:      consumerMetrics,
			Accepts:      accepts,
		})
		proc.Must(boot, name+" consumer", err)
		return l
	}
	fulfillmentLoop := loop(fulfillment.ConsumerName, cfg.PubSub.FulfillmentSubscription, fulfillmentHandler, fulfillment.Accepts)
	notificationLoop := loop(notifications.ConsumerName, cfg.PubSub.NotificationSubscription, notificationHandler, notifications.Accepts)

	service, err := NewService(ServiceParams{
		Logger: logg,
		Dependencies: map[string]pinger{
			"database": dbClient,
			"redis":    redisClient,
			"pubsub":   pubsubClient,
		},
		Consumers: map[string]runner{
			fulfillmentLoop.Name():  fulfillmentLoop,
			notificationLoop.Name(): notificationLoop,
		},
	})
	proc.Must(boot, "worker service", err)

	ctx, stop := proc.SignalContext()
	defer stop()
	stopMetrics := metrics.Serve(ctx, cfg.Eventing.MetricsAddr, logg)
	defer stopMetrics()

	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Must(ctx, "worker run", err)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
