package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/angelmondragon/telcobill-backend/api/controllers"
	"github.com/angelmondragon/telcobill-backend/api/routes"
	"github.com/angelmondragon/telcobill-backend/internal/app"
	stripewebhook "github.com/angelmondragon/telcobill-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/telcobill-backend/pkg/auth/session"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/idempotency"
)

const (
	stripeWebhookScope = "stripe-webhook"
	stripeWebhookTTL   = 72 * time.Hour
	shutdownTimeout    = 15 * time.Second
)

func main() {
	proc := app.Start("api")
	defer proc.Shutdown()
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient := proc.Database(boot)
	redisClient := proc.Redis(boot)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	proc.Must(boot, "session manager", err)

	gateway, stripeClient, err := app.Gateway(boot, cfg, logg)
	proc.Must(boot, "payment gateway", err)

	container, err := app.New(cfg, logg, dbClient, gateway)
	proc.Must(boot, "services", err)

	authService, registerService, err := app.AuthServices(cfg, container.Repos, sessionManager)
	proc.Must(boot, "auth services", err)

	services := routes.Services{
		Auth:            authService,
		Register:        registerService,
		Sessions:        sessionManager,
		Customers:       container.Customers,
		Dashboard:       container.Dashboard,
		Msisdns:         container.Msisdns,
		Plans:           container.Plans,
		Checkout:        container.Checkout,
		Subscriptions:   container.Subscriptions,
		Usage:           container.Usage,
		Invoices:        container.Invoices,
		Payments:        container.Payments,
		DeviceContracts: container.DeviceContracts,
		Insurance:       container.Insurance,
		Family:          container.Family,
		Corporate:       container.Corporate,
		Roaming:         container.Roaming,
		Porting:         container.Porting,
		Notifications:   container.Notifications,
		Analytics:       container.Analytics,
		DeadLetters:     container.DeadLetters,
	}

	if stripeClient != nil {
		webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{Payments: container.Payments, Logger: logg})
		proc.Must(boot, "stripe webhook service", err)
		ledger, err := idempotency.NewManager(redisClient, stripeWebhookTTL)
		proc.Must(boot, "stripe webhook guard", err)
		services.StripeWebhook = webhookService
		services.StripeVerifier = stripeClient
		services.StripeWebhookGuard = ledger.Scope(stripeWebhookScope)
	}

	readiness := map[string]controllers.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	if stripeClient != nil {
		ctx = logg.WithField(ctx, "stripe_env", stripeClient.Environment())
	}
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, redisClient, readiness, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := proc.SignalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			proc.Must(ctx, "api listener", err)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server stopped")
	}
}
