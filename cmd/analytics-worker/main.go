package main

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/telcobill-backend/internal/analytics/router"
	"github.com/angelmondragon/telcobill-backend/internal/analytics/worker"
	"github.com/angelmondragon/telcobill-backend/internal/analytics/writer"
	"github.com/angelmondragon/telcobill-backend/internal/app"
	"github.com/angelmondragon/telcobill-backend/pkg/bigquery"
	"github.com/angelmondragon/telcobill-backend/pkg/metrics"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/delivery"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/telcobill-backend/pkg/pubsub"
)

const flushTimeout = 10 * time.Second

func main() {
	proc := app.Start("analytics-worker")
	defer proc.Shutdown()
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	redisClient := proc.Redis(boot)

	subscriptions := pubsub.AnalyticsSubscriptions(cfg.PubSub)
	pubsubClient, err := pubsub.NewClient(boot, cfg.GCP, cfg.PubSub, logg, pubsub.Resources{Subscriptions: subscriptions})
	proc.Must(boot, "pubsub", err)
	proc.OnShutdown("pubsub client", pubsubClient.Close)

	billingTable := writer.BillingEventsTable(cfg.BigQuery.BillingEventsTable)
	bqClient, err := bigquery.NewClient(boot, cfg.GCP, cfg.BigQuery, logg, billingTable)
	proc.Must(boot, "bigquery client", err)
	proc.OnShutdown("bigquery client", bqClient.Close)

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	proc.Must(boot, "idempotency manager", err)

	sink, err := writer.New(bqClient, writer.Config{
		Table:       billingTable.Name,
		BatchSize:   cfg.BigQuery.InsertBatchSize,
		MaxAttempts: cfg.BigQuery.InsertMaxAttempts,
	})
	proc.Must(boot, "analytics writer", err)
	// Registered after the bigquery client so it runs first on shutdown.
	proc.OnShutdown("analytics writer", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		return sink.Flush(ctx)
	})

	routing, err := router.NewRouter(sink, logg, nil)
	proc.Must(boot, "analytics router", err)
	adapter, err := worker.NewAdapter(routing)
	proc.Must(boot, "analytics adapter", err)

	consumerMetrics := metrics.NewConsumerMetrics(prometheus.DefaultRegisterer)
	loops := make([]*delivery.Loop, 0, len(subscriptions))
	for _, sub := range subscriptions {
		loop, err := delivery.NewLoop(delivery.LoopParams{
			Name:         worker.ConsumerName,
			Subscription: pubsubClient.Subscriber(sub),
			Handler:      adapter,
			Dedupe:       manager.Scope(worker.ConsumerName),
			Logger:       logg,
			Metrics:      consumerMetrics,
			Accepts:      routing.Supports,
		})
		proc.Must(boot, "analytics consumer "+sub, err)
		loops = append(loops, loop)
	}

	ctx, stop := proc.SignalContext()
	defer stop()
	logg.Info(logg.WithField(ctx, "subscriptions", len(loops)), "analytics worker ready")

	stopMetrics := metrics.Serve(ctx, cfg.Eventing.MetricsAddr, logg)
	defer stopMetrics()

	group, groupCtx := errgroup.WithContext(ctx)
	for _, loop := range loops {
		group.Go(func() error { return loop.Run(groupCtx) })
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		proc.Must(ctx, "analytics consumers", err)
	}
}
