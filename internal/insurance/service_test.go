package insurance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/devicecontracts"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments/paymentstest"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
)

type fixture struct {
	svc       Service
	contracts devicecontracts.Service
	conn      *gorm.DB
	customer  *models.CustomerProfile
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tables := append(paymentstest.Models(), &models.DeviceContract{}, &models.DeviceInsurance{}, &models.Subscription{})
	client, conn := dbtest.Client(t, tables...)
	f := &fixture{conn: conn, clock: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }
	contractRepo := devicecontracts.NewRepository(conn)
	stack := paymentstest.New(t, client, conn, nil, now, devicecontracts.NewInstallmentLedger(contractRepo))

	svc, err := NewService(ServiceParams{Repo: NewRepository(conn), Contracts: contractRepo, Payments: stack.Payments, Tx: client, Now: now})
	require.NoError(t, err)
	f.svc = svc

	contracts, err := devicecontracts.NewService(devicecontracts.ServiceParams{
		Repo:          contractRepo,
		Invoices:      invoices.NewRepository(conn),
		Subscriptions: subscriptions.NewRepository(conn),
		Payments:      stack.Payments,
		Coverage:      svc,
		Tx:            client,
		Outbox:        stack.Emitter,
		Now:           now,
	})
	require.NoError(t, err)
	f.contracts = contracts
	f.customer = paymentstest.SeedCustomer(t, conn, "pm_card_visa")
	return f
}

func (f *fixture) contract(t *testing.T) uuid.UUID {
	t.Helper()
	result, err := f.contracts.Create(context.Background(), f.customer.ID, devicecontracts.CreateInput{
		DeviceName: "Galaxy S25", DevicePriceMinor: 80000, InstallmentCount: 10,
	})
	require.NoError(t, err)
	return result.Contract.ID
}

func TestPurchaseInvoicesFirstPremium(t *testing.T) {
	f := newFixture(t)
	contractID := f.contract(t)

	result, err := f.svc.Purchase(context.Background(), f.customer.ID, contractID, PurchaseInput{CoverageTier: enums.CoverageTierPremium})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), result.Policy.MonthlyPremiumMinor)
	assert.Equal(t, int64(80000), result.Policy.CoverageAmountMinor)
	assert.Equal(t, 2, result.Policy.ClaimsRemaining)
	assert.True(t, result.Policy.ExpiresAt.Equal(f.clock.AddDate(1, 0, 0)))
	require.NotNil(t, result.Invoice)
	assert.Equal(t, int64(2360), result.Invoice.TotalMinor)
	assert.Equal(t, enums.InvoiceStatusPaid, result.Invoice.Status)

	_, err = f.svc.Purchase(context.Background(), f.customer.ID, contractID, PurchaseInput{CoverageTier: enums.CoverageTierBasic})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestPurchaseRejectsUnknownTierAndForeignContract(t *testing.T) {
	f := newFixture(t)
	contractID := f.contract(t)

	_, err := f.svc.Purchase(context.Background(), f.customer.ID, contractID, PurchaseInput{CoverageTier: "platinum"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Purchase(context.Background(), uuid.New(), contractID, PurchaseInput{CoverageTier: enums.CoverageTierBasic})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestClaimsExhaustBasicPolicy(t *testing.T) {
	f := newFixture(t)
	purchased, err := f.svc.Purchase(context.Background(), f.customer.ID, f.contract(t), PurchaseInput{CoverageTier: enums.CoverageTierBasic})
	require.NoError(t, err)

	_, err = f.svc.Claim(context.Background(), f.customer.ID, purchased.Policy.ID, ClaimInput{Description: "  "})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	claim, err := f.svc.Claim(context.Background(), f.customer.ID, purchased.Policy.ID, ClaimInput{Description: "cracked screen"})
	require.NoError(t, err)
	assert.Equal(t, int64(56000), claim.PayoutMinor)
	assert.Equal(t, enums.InsuranceClaimed, claim.Policy.Status)
	assert.Equal(t, 0, claim.Policy.ClaimsRemaining)

	_, err = f.svc.Claim(context.Background(), f.customer.ID, purchased.Policy.ID, ClaimInput{Description: "again"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestClaimAfterExpiryIsRejected(t *testing.T) {
	f := newFixture(t)
	purchased, err := f.svc.Purchase(context.Background(), f.customer.ID, f.contract(t), PurchaseInput{CoverageTier: enums.CoverageTierPremium})
	require.NoError(t, err)

	f.clock = f.clock.AddDate(1, 0, 1)
	_, err = f.svc.Claim(context.Background(), f.customer.ID, purchased.Policy.ID, ClaimInput{Description: "lost"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestCancelAndContractTermination(t *testing.T) {
	f := newFixture(t)
	first, err := f.svc.Purchase(context.Background(), f.customer.ID, f.contract(t), PurchaseInput{CoverageTier: enums.CoverageTierBasic})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), f.customer.ID, first.Policy.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.InsuranceCancelled, cancelled.Status)
	_, err = f.svc.Cancel(context.Background(), f.customer.ID, first.Policy.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	contractID := f.contract(t)
	second, err := f.svc.Purchase(context.Background(), f.customer.ID, contractID, PurchaseInput{CoverageTier: enums.CoverageTierPremium})
	require.NoError(t, err)
	_, err = f.contracts.Terminate(context.Background(), f.customer.ID, contractID)
	require.NoError(t, err)

	policies, err := f.svc.List(context.Background(), f.customer.ID)
	require.NoError(t, err)
	for _, p := range policies {
		if p.ID == second.Policy.ID {
			assert.Equal(t, enums.InsuranceCancelled, p.Status)
		}
	}
}
