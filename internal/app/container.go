// Package app assembles the repositories and services shared by the API and the cron worker.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/internal/analytics"
	"github.com/angelmondragon/telcobill-backend/internal/auth"
	"github.com/angelmondragon/telcobill-backend/internal/checkout"
	"github.com/angelmondragon/telcobill-backend/internal/corporate"
	"github.com/angelmondragon/telcobill-backend/internal/customers"
	"github.com/angelmondragon/telcobill-backend/internal/dashboard"
	"github.com/angelmondragon/telcobill-backend/internal/devicecontracts"
	"github.com/angelmondragon/telcobill-backend/internal/family"
	"github.com/angelmondragon/telcobill-backend/internal/insurance"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/msisdn"
	"github.com/angelmondragon/telcobill-backend/internal/notifications"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/internal/plans"
	"github.com/angelmondragon/telcobill-backend/internal/porting"
	"github.com/angelmondragon/telcobill-backend/internal/roaming"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/internal/usage"
	"github.com/angelmondragon/telcobill-backend/pkg/config"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/stripe"
)

// Repositories are the gorm-backed data access layers.
type Repositories struct {
	Customers       *customers.Repository
	Plans           *plans.Repository
	Msisdns         *msisdn.Repository
	Subscriptions   *subscriptions.Repository
	Invoices        *invoices.Repository
	Payments        *payments.Repository
	DeviceContracts *devicecontracts.Repository
	Insurance       *insurance.Repository
	Usage           *usage.Repository
	Family          *family.Repository
	Corporate       *corporate.Repository
	Roaming         *roaming.Repository
	Porting         *porting.Repository
	Checkout        *checkout.Repository
	Analytics       *analytics.Repository
	Notifications   notifications.Repository
	Outbox          *outbox.Repository
	DeadLetters     *outbox.DLQRepository
}

// Container holds every domain service.
type Container struct {
	Repos   Repositories
	Emitter outbox.Emitter

	Customers       customers.Service
	Plans           plans.Service
	Msisdns         msisdn.Service
	Invoices        invoices.Service
	Payments        payments.Service
	Lifecycle       *subscriptions.Lifecycle
	Subscriptions   subscriptions.Service
	Usage           usage.Service
	DeviceContracts devicecontracts.Service
	Insurance       insurance.Service
	Family          family.Service
	Corporate       corporate.Service
	Roaming         roaming.Service
	Porting         porting.Service
	Checkout        checkout.Service
	Notifications   notifications.Service
	Dashboard       dashboard.Service
	Analytics       analytics.Service
	DeadLetters     outbox.DeadLetters
}

// Gateway picks Stripe when credentials are configured and the sandbox otherwise. The
// sandbox is refused in production.
func Gateway(ctx context.Context, cfg *config.Config, logg *logger.Logger) (payments.Gateway, *stripe.Client, error) {
	if cfg.Stripe.APIKey == "" {
		if cfg.App.IsProd() {
			return nil, nil, fmt.Errorf("stripe api key is required in production")
		}
		logg.Warn(ctx, "stripe not configured, using sandbox payment gateway")
		return payments.SandboxGateway{}, nil, nil
	}
	client, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("stripe client: %w", err)
	}
	return payments.NewStripeGateway(client), client, nil
}

// New wires the services bottom-up: invoices and payments first, since most flows bill
// through them.
func New(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, gateway payments.Gateway) (*Container, error) {
	conn := dbClient.DB()
	now := func() time.Time { return time.Now().UTC() }

	repos := Repositories{
		Customers:       customers.NewRepository(conn),
		Plans:           plans.NewRepository(conn),
		Msisdns:         msisdn.NewRepository(conn),
		Subscriptions:   subscriptions.NewRepository(conn),
		Invoices:        invoices.NewRepository(conn),
		Payments:        payments.NewRepository(conn),
		DeviceContracts: devicecontracts.NewRepository(conn),
		Insurance:       insurance.NewRepository(conn),
		Usage:           usage.NewRepository(conn),
		Family:          family.NewRepository(conn),
		Corporate:       corporate.NewRepository(conn),
		Roaming:         roaming.NewRepository(conn),
		Porting:         porting.NewRepository(conn),
		Checkout:        checkout.NewRepository(conn),
		Analytics:       analytics.NewRepository(conn),
		Notifications:   notifications.NewRepository(conn),
		Outbox:          outbox.NewRepository(conn),
		DeadLetters:     outbox.NewDLQRepository(conn),
	}
	c := &Container{Repos: repos, Emitter: outbox.NewService(repos.Outbox, logg)}

	var err error
	if c.Customers, err = customers.NewService(repos.Customers); err != nil {
		return nil, fmt.Errorf("customers service: %w", err)
	}
	if c.Plans, err = plans.NewService(repos.Plans); err != nil {
		return nil, fmt.Errorf("plans service: %w", err)
	}
	if c.Msisdns, err = msisdn.NewService(msisdn.ServiceParams{
		Repo:           repos.Msisdns,
		Tx:             dbClient,
		Outbox:         c.Emitter,
		Logger:         logg,
		ReservationTTL: cfg.Billing.ReservationTTL,
		Now:            now,
	}); err != nil {
		return nil, fmt.Errorf("msisdn service: %w", err)
	}
	if c.Invoices, err = invoices.NewService(invoices.ServiceParams{
		Repo:    repos.Invoices,
		Credits: repos.Customers,
		Hooks:   []invoices.SettlementHook{devicecontracts.NewInstallmentLedger(repos.DeviceContracts)},
		Tx:      dbClient,
		Outbox:  c.Emitter,
		DueDays: cfg.Billing.InvoiceDueDays,
		Now:     now,
	}); err != nil {
		return nil, fmt.Errorf("invoices service: %w", err)
	}
	if c.Lifecycle, err = subscriptions.NewLifecycle(repos.Subscriptions, c.Emitter, now); err != nil {
		return nil, fmt.Errorf("subscription lifecycle: %w", err)
	}
	if c.Payments, err = payments.NewService(payments.ServiceParams{
		Repo:          repos.Payments,
		Invoices:      repos.Invoices,
		Issuer:        c.Invoices,
		Customers:     repos.Customers,
		Tx:            dbClient,
		Outbox:        c.Emitter,
		Gateway:       gateway,
		Subscriptions: c.Lifecycle,
		Logger:        logg,
		MaxRetries:    cfg.Billing.PaymentMaxRetries,
		RetryDelay:    cfg.Billing.PaymentRetryDelay,
		Now:           now,
	}); err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}
	if c.Subscriptions, err = subscriptions.NewService(subscriptions.ServiceParams{
		Repo:            repos.Subscriptions,
		Plans:           repos.Plans,
		Msisdns:         repos.Msisdns,
		Customers:       repos.Customers,
		Invoices:        repos.Invoices,
		Payments:        c.Payments,
		Lifecycle:       c.Lifecycle,
		Tx:              dbClient,
		Outbox:          c.Emitter,
		Logger:          logg,
		CoolingDownDays: cfg.Billing.CoolingDownDays,
		Now:             now,
	}); err != nil {
		return nil, fmt.Errorf("subscriptions service: %w", err)
	}
	if c.Usage, err = usage.NewService(usage.ServiceParams{
		Repo:          repos.Usage,
		Subscriptions: repos.Subscriptions,
		Tx:            dbClient,
		Now:           now,
	}); err != nil {
		return nil, fmt.Errorf("usage service: %w", err)
	}
	if c.Insurance, err = insurance.NewService(insurance.ServiceParams{
		Repo:      repos.Insurance,
		Contracts: repos.DeviceContracts,
		Payments:  c.Payments,
		Tx:        dbClient,
		Now:       now,
	}); err != nil {
		return nil, fmt.Errorf("insurance service: %w", err)
	}
	if c.DeviceContracts, err = devicecontracts.NewService(devicecontracts.ServiceParams{
		Repo:          repos.DeviceContracts,
		Invoices:      repos.Invoices,
		Subscriptions: repos.Subscriptions,
		Payments:      c.Payments,
		Coverage:      c.Insurance,
		Tx:            dbClient,
		Outbox:        c.Emitter,
		Now:           now,
	}); err != nil {
		return nil, fmt.Errorf("device contracts service: %w", err)
	}
	if c.Family, err = family.NewService(family.ServiceParams{
		Repo:          repos.Family,
		Subscriptions: repos.Subscriptions,
		Plans:         repos.Plans,
		Tx:            dbClient,
		Now:           now,
	}); err != nil {
		return nil, fmt.Errorf("family service: %w", err)
	}
	if c.Corporate, err = corporate.NewService(corporate.ServiceParams{
		Repo:          repos.Corporate,
		Customers:     repos.Customers,
		Subscriptions: repos.Subscriptions,
		Plans:         repos.Plans,
		Invoices:      repos.Invoices,
		Payments:      c.Payments,
		Tx:            dbClient,
		Now:           now,
	}); err != nil {
		return nil, fmt.Errorf("corporate service: %w", err)
	}
	if c.Roaming, err = roaming.NewService(roaming.ServiceParams{
		Repo:          repos.Roaming,
		Subscriptions: repos.Subscriptions,
		Payments:      c.Payments,
		Tx:            dbClient,
		Now:           now,
	}); err != nil {
		return nil, fmt.Errorf("roaming service: %w", err)
	}
	if c.Porting, err = porting.NewService(porting.ServiceParams{
		Repo:            repos.Porting,
		Subscriptions:   repos.Subscriptions,
		Plans:           repos.Plans,
		Msisdns:         repos.Msisdns,
		Payments:        c.Payments,
		Tx:              dbClient,
		Outbox:          c.Emitter,
		OperatorName:    cfg.Billing.OperatorName,
		LeadDays:        cfg.Billing.PortingLeadDays,
		CoolingDownDays: cfg.Billing.CoolingDownDays,
		Now:             now,
	}); err != nil {
		return nil, fmt.Errorf("porting service: %w", err)
	}
	if c.Checkout, err = checkout.NewService(checkout.ServiceParams{
		Repo:          repos.Checkout,
		Customers:     repos.Customers,
		Plans:         repos.Plans,
		Msisdns:       repos.Msisdns,
		Claimer:       c.Msisdns,
		Subscriptions: repos.Subscriptions,
		Payments:      c.Payments,
		Tx:            dbClient,
		Outbox:        c.Emitter,
		SimFeeMinor:   cfg.Billing.SimActivationFee,
		Now:           now,
	}); err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}
	if c.Notifications, err = notifications.NewService(repos.Notifications, now); err != nil {
		return nil, fmt.Errorf("notifications service: %w", err)
	}
	if c.Dashboard, err = dashboard.NewService(dashboard.ServiceParams{
		Customers:     repos.Customers,
		Subscriptions: repos.Subscriptions,
		Plans:         repos.Plans,
		Invoices:      repos.Invoices,
		Contracts:     repos.DeviceContracts,
		Notifications: c.Notifications,
	}); err != nil {
		return nil, fmt.Errorf("dashboard service: %w", err)
	}
	if c.Analytics, err = analytics.NewService(repos.Analytics, now); err != nil {
		return nil, fmt.Errorf("analytics service: %w", err)
	}
	if c.DeadLetters, err = outbox.NewDeadLetterService(dbClient, repos.Outbox, repos.DeadLetters, logg); err != nil {
		return nil, fmt.Errorf("dead letter service: %w", err)
	}
	return c, nil
}

// AuthServices builds login and registration over the customer repository.
func AuthServices(cfg *config.Config, repos Repositories, sessions authSessionManager) (auth.Service, auth.RegisterService, error) {
	authSvc, err := auth.NewService(auth.ServiceParams{
		Customers:      repos.Customers,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("auth service: %w", err)
	}
	registerSvc, err := auth.NewRegisterService(auth.RegisterServiceParams{
		Customers:      repos.Customers,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("register service: %w", err)
	}
	return authSvc, registerSvc, nil
}

type authSessionManager interface {
	Generate(ctx context.Context, accessID string, customerID uuid.UUID) (string, error)
}
