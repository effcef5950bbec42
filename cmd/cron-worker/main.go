package main

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/telcobill-backend/internal/app"
	"github.com/angelmondragon/telcobill-backend/internal/cron"
	"github.com/angelmondragon/telcobill-backend/pkg/config"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/metrics"
)

func main() {
	proc := app.Start("cron-worker")
	defer proc.Shutdown()
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient := proc.Database(boot)
	redisClient := proc.Redis(boot)

	gateway, _, err := app.Gateway(boot, cfg, logg)
	proc.Must(boot, "payment gateway", err)
	container, err := app.New(cfg, logg, dbClient, gateway)
	proc.Must(boot, "services", err)

	registry, err := buildRegistry(cfg, logg, dbClient, container)
	proc.Must(boot, "cron jobs", err)

	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockTTL)
	proc.Must(boot, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Location: time.UTC,
	})
	proc.Must(boot, "cron service", err)

	ctx, stop := proc.SignalContext()
	defer stop()

	stopMetrics := metrics.Serve(ctx, cfg.Cron.MetricsAddr, logg)
	defer stopMetrics()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Must(ctx, "cron scheduler", err)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, c *app.Container) (*cron.Registry, error) {
	registry := cron.NewRegistry()

	type scheduled struct {
		build    func() (cron.Job, error)
		schedule string
	}
	jobs := []scheduled{
		{func() (cron.Job, error) { return cron.NewPaymentRetryJob(logg, c.Payments) }, cfg.Cron.PaymentRetrySchedule},
		{func() (cron.Job, error) { return cron.NewReservationSweepJob(logg, c.Msisdns) }, cfg.Cron.ReservationSweepSchedule},
		{func() (cron.Job, error) { return cron.NewMsisdnRecycleJob(logg, c.Msisdns) }, cfg.Cron.MsisdnRecycleSchedule},
		{func() (cron.Job, error) { return cron.NewInvoiceOverdueJob(logg, c.Invoices) }, cfg.Cron.InvoiceOverdueSchedule},
		{func() (cron.Job, error) { return cron.NewSubscriptionExpiryJob(logg, c.Subscriptions) }, cfg.Cron.SubscriptionExpirySchedule},
		{func() (cron.Job, error) {
			return cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
				Logger:              logg,
				DB:                  dbClient,
				Outbox:              c.Repos.Outbox,
				DeadLetters:         c.Repos.DeadLetters,
				Retention:           cfg.Cron.OutboxRetention,
				DeadLetterRetention: cfg.Cron.DeadLetterRetention,
			})
		}, cfg.Cron.OutboxRetentionSchedule},
		{func() (cron.Job, error) {
			return cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
				Logger:     logg,
				Repository: c.Repos.Notifications,
				Retention:  cfg.Cron.NotificationRetention,
				BatchSize:  cfg.Cron.NotificationPurgeBatch,
			})
		}, cfg.Cron.NotificationCleanup},
	}

	for _, entry := range jobs {
		job, err := entry.build()
		if err != nil {
			return nil, err
		}
		registry.Register(job, entry.schedule)
	}
	return registry, nil
}
