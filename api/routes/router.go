package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/telcobill-backend/api/controllers"
	admincontrollers "github.com/angelmondragon/telcobill-backend/api/controllers/admin"
	billingcontrollers "github.com/angelmondragon/telcobill-backend/api/controllers/billing"
	subscriptioncontrollers "github.com/angelmondragon/telcobill-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/angelmondragon/telcobill-backend/api/controllers/webhooks"
	"github.com/angelmondragon/telcobill-backend/api/middleware"
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
	"github.com/angelmondragon/telcobill-backend/pkg/auth/session"
	"github.com/angelmondragon/telcobill-backend/pkg/config"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, uuid.UUID, string) (string, string, error)
	Revoke(context.Context, string) error
}

// redisStore is the slice of the Redis client the HTTP layer needs.
type redisStore interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(parts ...string) string
}

// Services bundles everything the HTTP surface dispatches to. Nil entries produce a 500 on
// the routes that need them instead of a panic.
type Services struct {
	Auth            auth.Service
	Register        auth.RegisterService
	Sessions        sessionManager
	Customers       customers.Service
	Dashboard       dashboard.Service
	Msisdns         msisdn.Service
	Plans           plans.Service
	Checkout        checkout.Service
	Subscriptions   subscriptions.Service
	Usage           usage.Service
	Invoices        invoices.Service
	Payments        payments.Service
	DeviceContracts devicecontracts.Service
	Insurance       insurance.Service
	Family          family.Service
	Corporate       corporate.Service
	Roaming         roaming.Service
	Porting         porting.Service
	Notifications   notifications.Service
	Analytics       analytics.Service
	DeadLetters     outbox.DeadLetters

	StripeWebhook      webhookcontrollers.StripeWebhookService
	StripeVerifier     webhookcontrollers.WebhookVerifier
	StripeWebhookGuard webhookcontrollers.StripeWebhookGuard
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	store redisStore,
	readiness map[string]controllers.Pinger,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	paymentPolicy := middleware.NewCustomerRateLimitPolicy(
		"payment",
		cfg.AuthRateLimit.PaymentWindow,
		cfg.AuthRateLimit.PaymentCustomerLimit,
	)
	chargeLimit := middleware.RateLimit(paymentPolicy, store, logg)
	charge := middleware.Idempotent(middleware.IdempotencyCharge, store, logg)
	standard := middleware.Idempotent(middleware.IdempotencyStandard, store, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/public/ping", controllers.Ping("public"))

	r.Post("/api/webhooks/stripe", webhookcontrollers.StripeWebhook(svc.StripeWebhook, svc.StripeVerifier, svc.StripeWebhookGuard, logg))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(loginPolicy, store, logg)).Post("/login", controllers.AuthLogin(svc.Auth, logg))
		r.With(middleware.RateLimit(registerPolicy, store, logg)).Post("/register", controllers.AuthRegister(svc.Register, svc.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(svc.Sessions, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(svc.Sessions, cfg.JWT, logg))
	})

	r.Route("/api/admin/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(loginPolicy, store, logg)).Post("/login", controllers.AdminAuthLogin(svc.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, svc.Sessions, logg))

		r.Get("/ping", controllers.Ping("private"))
		r.Get("/me", controllers.CustomerProfile(svc.Customers, logg))
		r.Get("/dashboard", controllers.CustomerDashboard(svc.Dashboard, logg))

		r.Route("/msisdns", func(r chi.Router) {
			r.Get("/available", controllers.BrowseNumbers(svc.Msisdns, logg))
			r.Post("/{msisdnId}/reserve", controllers.ReserveNumber(svc.Msisdns, logg))
			r.Delete("/{msisdnId}/reserve", controllers.ReleaseNumber(svc.Msisdns, logg))
		})

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", controllers.ListPlans(svc.Plans, logg))
			r.Get("/{planId}", controllers.GetPlan(svc.Plans, logg))
		})

		r.Post("/orders/sim/quote", controllers.QuoteSimOrder(svc.Checkout, logg))
		r.With(chargeLimit, charge).Post("/orders/sim", controllers.PlaceSimOrder(svc.Checkout, logg))

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", subscriptioncontrollers.List(svc.Subscriptions, logg))
			r.Route("/{subscriptionId}", func(r chi.Router) {
				r.Get("/", subscriptioncontrollers.Detail(svc.Subscriptions, logg))
				r.With(charge).Post("/recharge", subscriptioncontrollers.Recharge(svc.Subscriptions, logg))
				r.With(standard).Post("/top-up", subscriptioncontrollers.TopUp(svc.Subscriptions, logg))
				r.Post("/change-plan/preview", subscriptioncontrollers.PreviewPlanChange(svc.Subscriptions, logg))
				r.With(standard).Post("/change-plan", subscriptioncontrollers.ChangePlan(svc.Subscriptions, logg))
				r.Post("/cancel", subscriptioncontrollers.Cancel(svc.Subscriptions, logg))
				r.Patch("/auto-renew", subscriptioncontrollers.SetAutoRenew(svc.Subscriptions, logg))
				r.Post("/usage", subscriptioncontrollers.RecordUsage(svc.Usage, logg))
				r.Get("/usage", subscriptioncontrollers.GetUsage(svc.Usage, logg))
				r.Get("/usage/export", subscriptioncontrollers.ExportUsage(svc.Usage, logg))
				r.With(standard).Post("/roaming", subscriptioncontrollers.ActivateRoaming(svc.Roaming, logg))
				r.Get("/roaming", subscriptioncontrollers.ListRoaming(svc.Roaming, logg))
			})
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", billingcontrollers.ListInvoices(svc.Invoices, logg))
			r.Get("/{invoiceId}", billingcontrollers.GetInvoice(svc.Invoices, logg))
			r.With(chargeLimit, charge).Post("/{invoiceId}/pay", billingcontrollers.PayInvoice(svc.Payments, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, logg))
			r.Get("/unread-count", controllers.NotificationUnreadCount(svc.Notifications, logg))
		})

		r.Route("/device-contracts", func(r chi.Router) {
			r.Get("/quote", billingcontrollers.QuoteDeviceContract(svc.DeviceContracts, logg))
			r.With(standard).Post("/", billingcontrollers.CreateDeviceContract(svc.DeviceContracts, logg))
			r.Get("/", billingcontrollers.ListDeviceContracts(svc.DeviceContracts, logg))
			r.Route("/{contractId}", func(r chi.Router) {
				r.Get("/", billingcontrollers.GetDeviceContract(svc.DeviceContracts, logg))
				r.With(charge).Post("/installments", billingcontrollers.PayDeviceInstallment(svc.DeviceContracts, logg))
				r.Get("/termination-quote", billingcontrollers.DeviceTerminationQuote(svc.DeviceContracts, logg))
				r.Post("/terminate", billingcontrollers.TerminateDeviceContract(svc.DeviceContracts, logg))
				r.Post("/insurance", billingcontrollers.PurchaseInsurance(svc.Insurance, logg))
			})
		})

		r.Route("/insurance", func(r chi.Router) {
			r.Get("/", billingcontrollers.ListInsurancePolicies(svc.Insurance, logg))
			r.Post("/{policyId}/claims", billingcontrollers.ClaimInsurance(svc.Insurance, logg))
			r.Post("/{policyId}/cancel", billingcontrollers.CancelInsurance(svc.Insurance, logg))
		})

		r.Route("/family-plans", func(r chi.Router) {
			r.Post("/", controllers.CreateFamilyPlan(svc.Family, logg))
			r.Get("/", controllers.ListFamilyPlans(svc.Family, logg))
			r.Route("/{familyId}", func(r chi.Router) {
				r.Get("/", controllers.GetFamilyPlan(svc.Family, logg))
				r.Delete("/", controllers.DissolveFamilyPlan(svc.Family, logg))
				r.Post("/members", controllers.AddFamilyMember(svc.Family, logg))
				r.Delete("/members/{memberId}", controllers.RemoveFamilyMember(svc.Family, logg))
			})
		})

		r.Get("/roaming-packages", controllers.ListRoamingPackages(svc.Roaming, logg))

		r.Route("/porting-requests", func(r chi.Router) {
			r.Post("/", controllers.CreatePortingRequest(svc.Porting, logg))
			r.Get("/", controllers.ListPortingRequests(svc.Porting, logg))
			r.Post("/{portingId}/cancel", controllers.CancelPortingRequest(svc.Porting, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, svc.Sessions, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))

		r.Get("/ping", controllers.Ping("admin"))

		r.Route("/msisdns", func(r chi.Router) {
			r.Get("/", admincontrollers.ListNumbers(svc.Msisdns, logg))
			r.Post("/", admincontrollers.CreateNumber(svc.Msisdns, logg))
			r.Post("/import", admincontrollers.ImportNumbers(svc.Msisdns, logg))
			r.Get("/{msisdnId}", admincontrollers.GetNumber(svc.Msisdns, logg))
			r.Patch("/{msisdnId}", admincontrollers.UpdateNumber(svc.Msisdns, logg))
			r.Delete("/{msisdnId}", admincontrollers.DeleteNumber(svc.Msisdns, logg))
		})

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", admincontrollers.ListPlans(svc.Plans, logg))
			r.Post("/", admincontrollers.CreatePlan(svc.Plans, logg))
			r.Patch("/{planId}", admincontrollers.UpdatePlan(svc.Plans, logg))
			r.Post("/{planId}/deactivate", admincontrollers.DeactivatePlan(svc.Plans, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", admincontrollers.ListInvoices(svc.Invoices, logg))
			r.Get("/{invoiceId}", admincontrollers.GetInvoice(svc.Invoices, logg))
			r.Post("/{invoiceId}/cancel", admincontrollers.CancelInvoice(svc.Invoices, logg))
			r.Post("/{invoiceId}/mark-paid", admincontrollers.MarkInvoicePaid(svc.Invoices, logg))
		})

		r.Get("/payment-attempts", admincontrollers.ListPaymentAttempts(svc.Payments, logg))

		r.Route("/outbox/dead-letters", func(r chi.Router) {
			r.Get("/", admincontrollers.ListDeadLetters(svc.DeadLetters, logg))
			r.Post("/{eventId}/replay", admincontrollers.ReplayDeadLetter(svc.DeadLetters, logg))
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", admincontrollers.ListCustomers(svc.Customers, logg))
			r.Get("/{customerId}", admincontrollers.GetCustomer(svc.Customers, logg))
			r.Patch("/{customerId}/kyc", admincontrollers.UpdateCustomerKYC(svc.Customers, logg))
			r.Get("/{customerId}/insights", admincontrollers.CustomerInsights(svc.Analytics, logg))
		})

		r.Route("/corporate-accounts", func(r chi.Router) {
			r.With(standard).Post("/", admincontrollers.CreateCorporateAccount(svc.Corporate, logg))
			r.Get("/", admincontrollers.ListCorporateAccounts(svc.Corporate, logg))
			r.Route("/{accountId}", func(r chi.Router) {
				r.Get("/", admincontrollers.GetCorporateAccount(svc.Corporate, logg))
				r.Patch("/", admincontrollers.UpdateCorporateAccount(svc.Corporate, logg))
				r.With(standard).Post("/subscriptions", admincontrollers.AddCorporateLine(svc.Corporate, logg))
				r.Delete("/subscriptions/{subscriptionId}", admincontrollers.RemoveCorporateLine(svc.Corporate, logg))
				r.With(standard).Post("/invoices", admincontrollers.GenerateCorporateInvoice(svc.Corporate, logg))
			})
		})

		r.Route("/roaming-packages", func(r chi.Router) {
			r.Get("/", admincontrollers.ListRoamingPackages(svc.Roaming, logg))
			r.Post("/", admincontrollers.CreateRoamingPackage(svc.Roaming, logg))
			r.Patch("/{packageId}", admincontrollers.UpdateRoamingPackage(svc.Roaming, logg))
		})

		r.Route("/porting-requests", func(r chi.Router) {
			r.Get("/", admincontrollers.ListPortingRequests(svc.Porting, logg))
			r.Post("/{portingId}/approve", admincontrollers.ApprovePortingRequest(svc.Porting, logg))
			r.Post("/{portingId}/reject", admincontrollers.RejectPortingRequest(svc.Porting, logg))
			r.Post("/{portingId}/complete", admincontrollers.CompletePortingRequest(svc.Porting, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", admincontrollers.ListSubscriptions(svc.Subscriptions, logg))
			r.Post("/{subscriptionId}/suspend", admincontrollers.SuspendSubscription(svc.Subscriptions, logg))
			r.Post("/{subscriptionId}/reactivate", admincontrollers.ReactivateSubscription(svc.Subscriptions, logg))
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/revenue", admincontrollers.RevenueAnalytics(svc.Analytics, logg))
			r.Get("/users", admincontrollers.UserAnalytics(svc.Analytics, logg))
		})
	})

	return r
}
