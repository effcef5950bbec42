// Package paymentstest wires the invoice and payment services over a test database with
// the sandbox gateway, for packages that bill customers.
package paymentstest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/customers"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
)

// Models lists the tables the billing stack touches.
func Models() []any {
	return []any{&models.CustomerProfile{}, &models.Invoice{}, &models.PaymentAttempt{}, &models.OutboxEvent{}}
}

type noopLifecycle struct{}

func (noopLifecycle) SuspendTx(context.Context, *gorm.DB, uuid.UUID, string) (bool, error) {
	return false, nil
}

func (noopLifecycle) ReactivateTx(context.Context, *gorm.DB, uuid.UUID, string) (bool, error) {
	return false, nil
}

// Stack is a billing pipeline backed by the sandbox gateway.
type Stack struct {
	Payments payments.Service
	Invoices invoices.Service
	Emitter  outbox.Emitter
}

// New builds the stack. lifecycle may be nil when suspension is irrelevant to the test.
// Account credit is applied to new invoices and hooks run when an invoice is paid.
func New(t *testing.T, client *db.Client, conn *gorm.DB, lifecycle payments.SubscriptionLifecycle, now func() time.Time, hooks ...invoices.SettlementHook) *Stack {
	t.Helper()
	if lifecycle == nil {
		lifecycle = noopLifecycle{}
	}
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	invoiceRepo := invoices.NewRepository(conn)
	customerRepo := customers.NewRepository(conn)
	invSvc, err := invoices.NewService(invoices.ServiceParams{
		Repo:    invoiceRepo,
		Credits: customerRepo,
		Hooks:   hooks,
		Tx:      client,
		Outbox:  emitter,
		Now:     now,
	})
	if err != nil {
		t.Fatalf("invoices.NewService: %v", err)
	}
	paySvc, err := payments.NewService(payments.ServiceParams{
		Repo:          payments.NewRepository(conn),
		Invoices:      invoiceRepo,
		Issuer:        invSvc,
		Customers:     customerRepo,
		Tx:            client,
		Outbox:        emitter,
		Gateway:       payments.SandboxGateway{},
		Subscriptions: lifecycle,
		Logger:        logger.Nop(),
		MaxRetries:    3,
		RetryDelay:    24 * time.Hour,
		Now:           now,
	})
	if err != nil {
		t.Fatalf("payments.NewService: %v", err)
	}
	return &Stack{Payments: paySvc, Invoices: invSvc, Emitter: emitter}
}

// SeedCustomer inserts a verified customer with a card on file. Pass
// payments.DeclineTestPaymentMethod to make every charge fail.
func SeedCustomer(t *testing.T, conn *gorm.DB, paymentMethod string) *models.CustomerProfile {
	t.Helper()
	ref := "cus_" + uuid.NewString()[:8]
	customer := &models.CustomerProfile{
		Email:                  uuid.NewString()[:8] + "@example.com",
		PasswordHash:           "x",
		FirstName:              "Test",
		LastName:               "Customer",
		KYCStatus:              enums.KYCStatusVerified,
		IsActive:               true,
		StripeCustomerID:       &ref,
		DefaultPaymentMethodID: &paymentMethod,
	}
	if err := conn.Create(customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer
}
