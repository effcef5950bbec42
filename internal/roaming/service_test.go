package roaming

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/payments/paymentstest"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
)

type fixture struct {
	svc      Service
	conn     *gorm.DB
	customer *models.CustomerProfile
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tables := append(paymentstest.Models(), &models.Subscription{}, &models.RoamingPackage{}, &models.RoamingActivation{})
	client, conn := dbtest.Client(t, tables...)
	f := &fixture{conn: conn, clock: time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }
	stack := paymentstest.New(t, client, conn, nil, now)
	svc, err := NewService(ServiceParams{
		Repo:          NewRepository(conn),
		Subscriptions: subscriptions.NewRepository(conn),
		Payments:      stack.Payments,
		Tx:            client,
		Now:           now,
	})
	require.NoError(t, err)
	f.svc = svc
	f.customer = paymentstest.SeedCustomer(t, conn, "pm_card_visa")
	return f
}

func (f *fixture) line(t *testing.T, status enums.SubscriptionStatus) uuid.UUID {
	t.Helper()
	sub := &models.Subscription{CustomerID: f.customer.ID, PlanID: uuid.New(), MsisdnID: uuid.New(), PhoneNumber: "+919811111111",
		Status: status, StartDate: f.clock, EndDate: f.clock.AddDate(0, 0, 30)}
	require.NoError(t, f.conn.Create(sub).Error)
	return sub.ID
}

func TestCreatePackageNormalizes(t *testing.T) {
	f := newFixture(t)
	pkg, err := f.svc.CreatePackage(context.Background(), PackageInput{
		Code: " EU-7 ", Name: "Europe week", Countries: []string{"fr", "DE", " de "}, PriceMinor: 99900, DataMB: 5120, ValidityDays: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-7", pkg.Code)
	assert.Equal(t, []string{"FR", "DE"}, pkg.Countries)
	assert.True(t, pkg.Active)

	_, err = f.svc.CreatePackage(context.Background(), PackageInput{Code: "eu-7", Name: "dup", Countries: []string{"FR"}, PriceMinor: 1, ValidityDays: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	_, err = f.svc.CreatePackage(context.Background(), PackageInput{Code: "bad", Name: "bad", Countries: []string{"FRA"}, PriceMinor: 1, ValidityDays: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestActivateInvoicesAndBlocksDuplicates(t *testing.T) {
	f := newFixture(t)
	pkg, err := f.svc.CreatePackage(context.Background(), PackageInput{Code: "us-30", Name: "USA month", Countries: []string{"US"}, PriceMinor: 150000, DataMB: 10240, ValidityDays: 30})
	require.NoError(t, err)
	line := f.line(t, enums.SubscriptionStatusActive)

	result, err := f.svc.Activate(context.Background(), f.customer.ID, line, ActivateInput{PackageID: pkg.ID, Country: "us"})
	require.NoError(t, err)
	assert.Equal(t, "US", result.Activation.Country)
	assert.Equal(t, int64(10240), result.Activation.DataRemainingMB)
	assert.True(t, result.Activation.ExpiresAt.Equal(f.clock.AddDate(0, 0, 30)))
	assert.Equal(t, int64(177000), result.Invoice.TotalMinor)
	assert.Equal(t, enums.InvoiceStatusPaid, result.Invoice.Status)

	_, err = f.svc.Activate(context.Background(), f.customer.ID, line, ActivateInput{PackageID: pkg.ID, Country: "US"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	f.clock = f.clock.AddDate(0, 0, 31)
	_, err = f.svc.Activate(context.Background(), f.customer.ID, line, ActivateInput{PackageID: pkg.ID, Country: "US"})
	require.NoError(t, err)

	history, err := f.svc.ListActivations(context.Background(), f.customer.ID, line)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestActivateChecksCoverageAndState(t *testing.T) {
	f := newFixture(t)
	pkg, err := f.svc.CreatePackage(context.Background(), PackageInput{Code: "asia", Name: "Asia", Countries: []string{"SG", "TH"}, PriceMinor: 50000, ValidityDays: 10})
	require.NoError(t, err)

	_, err = f.svc.Activate(context.Background(), f.customer.ID, f.line(t, enums.SubscriptionStatusActive), ActivateInput{PackageID: pkg.ID, Country: "JP"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Activate(context.Background(), f.customer.ID, f.line(t, enums.SubscriptionStatusSuspended), ActivateInput{PackageID: pkg.ID, Country: "SG"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	inactive := false
	_, err = f.svc.UpdatePackage(context.Background(), pkg.ID, PackageUpdate{Active: &inactive})
	require.NoError(t, err)
	_, err = f.svc.Activate(context.Background(), f.customer.ID, f.line(t, enums.SubscriptionStatusActive), ActivateInput{PackageID: pkg.ID, Country: "SG"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	visible, err := f.svc.ListPackages(context.Background(), "sg")
	require.NoError(t, err)
	assert.Empty(t, visible)
}
