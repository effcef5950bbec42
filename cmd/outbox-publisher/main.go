package main

import (
	"context"
	"errors"

	"github.com/angelmondragon/telcobill-backend/internal/app"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/registry"
	"github.com/angelmondragon/telcobill-backend/pkg/pubsub"
)

func main() {
	proc := app.Start("outbox-publisher")
	defer proc.Shutdown()
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient := proc.Database(boot)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	proc.Must(boot, "event registry", err)

	topics := eventRegistry.Topics()
	pubsubClient, err := pubsub.NewClient(boot, cfg.GCP, cfg.PubSub, logg, pubsub.Resources{Topics: topics})
	proc.Must(boot, "pubsub", err)
	proc.OnShutdown("pubsub client", pubsubClient.Close)

	conn := dbClient.DB()
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(conn),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(conn),
	})
	proc.Must(boot, "outbox publisher", err)

	ctx, stop := proc.SignalContext()
	defer stop()
	logg.Info(logg.WithField(ctx, "topics", topics), "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Must(ctx, "outbox publisher run", err)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}
