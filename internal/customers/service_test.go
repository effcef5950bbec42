package customers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/telcobill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
)

func seedCustomer(t *testing.T, repo *Repository, email string) *models.CustomerProfile {
	t.Helper()
	c := &models.CustomerProfile{Email: email, PasswordHash: "hash", FirstName: "Asha", LastName: "Rao", KYCStatus: enums.KYCStatusPending, IsActive: true}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func TestServiceGetHidesPasswordAndMapsNotFound(t *testing.T) {
	repo := NewRepository(dbtest.Open(t, &models.CustomerProfile{}))
	svc, err := NewService(repo)
	require.NoError(t, err)

	c := seedCustomer(t, repo, "asha@example.com")
	dto, err := svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", dto.Email)
	assert.False(t, dto.HasPaymentMethod)

	_, err = svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestServiceListFiltersAndPaginates(t *testing.T) {
	repo := NewRepository(dbtest.Open(t, &models.CustomerProfile{}))
	svc, _ := NewService(repo)
	ctx := context.Background()

	a := seedCustomer(t, repo, "a@example.com")
	seedCustomer(t, repo, "b@example.com")
	seedCustomer(t, repo, "c@example.com")
	_, err := svc.UpdateKYCStatus(ctx, a.ID, enums.KYCStatusVerified)
	require.NoError(t, err)

	page, err := svc.List(ctx, ListFilter{}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Items, 2)

	verified := enums.KYCStatusVerified
	page, err = svc.List(ctx, ListFilter{KYCStatus: &verified}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, a.ID, page.Items[0].ID)

	page, err = svc.List(ctx, ListFilter{Search: "B@EXAMPLE"}, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestServiceUpdateKYCValidates(t *testing.T) {
	repo := NewRepository(dbtest.Open(t, &models.CustomerProfile{}))
	svc, _ := NewService(repo)

	_, err := svc.UpdateKYCStatus(context.Background(), uuid.New(), enums.KYCStatus("maybe"))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateKYCStatus(context.Background(), uuid.New(), enums.KYCStatusRejected)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestSetPaymentMethod(t *testing.T) {
	repo := NewRepository(dbtest.Open(t, &models.CustomerProfile{}))
	svc, _ := NewService(repo)
	c := seedCustomer(t, repo, "pay@example.com")

	_, err := svc.SetPaymentMethod(context.Background(), c.ID, "acct_1", "pm_1")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	dto, err := svc.SetPaymentMethod(context.Background(), c.ID, "cus_123", "pm_card_visa")
	require.NoError(t, err)
	assert.True(t, dto.HasPaymentMethod)
}

func TestRepositoryAddCredit(t *testing.T) {
	repo := NewRepository(dbtest.Open(t, &models.CustomerProfile{}))
	c := seedCustomer(t, repo, "credit@example.com")

	require.NoError(t, repo.AddCredit(context.Background(), c.ID, 1500))
	require.NoError(t, repo.AddCredit(context.Background(), c.ID, 250))

	loaded, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1750, loaded.CreditBalanceMinor)
}
