package msisdn

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
)

type fixture struct {
	svc   Service
	repo  *Repository
	conn  *gorm.DB
	clock *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, conn := dbtest.Client(t, &models.MsisdnInventory{}, &models.OutboxEvent{})
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f := &fixture{repo: NewRepository(conn), conn: conn, clock: &now}
	svc, err := NewService(ServiceParams{
		Repo:   f.repo,
		Tx:     client,
		Outbox: outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Logger: logger.Nop(),
		Now:    func() time.Time { return *f.clock },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *fixture) seed(t *testing.T, number string, tier enums.MsisdnTier) *AdminNumberDTO {
	t.Helper()
	dto, err := f.svc.Create(context.Background(), CreateInput{PhoneNumber: number, Tier: tier, Region: "MH"})
	require.NoError(t, err)
	return dto
}

func TestReserveIsExclusiveUntilExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	number := f.seed(t, "+919800000001", enums.MsisdnTierGold)
	alice, bob := uuid.New(), uuid.New()

	reserved, err := f.svc.Reserve(ctx, alice, number.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.MsisdnStatusReserved, reserved.Status)
	assert.Equal(t, int64(49900), reserved.SurchargeMinor)
	require.NotNil(t, reserved.ReservationExpiresAt)
	assert.True(t, reserved.ReservationExpiresAt.Equal(f.clock.Add(15*time.Minute)))

	_, err = f.svc.Reserve(ctx, bob, number.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "second reserver must be rejected, got %v", err)

	// the holder may refresh its own reservation
	_, err = f.svc.Reserve(ctx, alice, number.ID)
	require.NoError(t, err)

	f.advance(16 * time.Minute)
	_, err = f.svc.Reserve(ctx, bob, number.ID)
	require.NoError(t, err, "lapsed reservation should be claimable")

	row, err := f.repo.FindByID(ctx, number.ID)
	require.NoError(t, err)
	require.NotNil(t, row.ReservedBy)
	assert.Equal(t, bob, *row.ReservedBy)
}

func TestReserveUnknownNumber(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Reserve(context.Background(), uuid.New(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestReleaseReservationOnlyByHolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	number := f.seed(t, "+919800000002", enums.MsisdnTierStandard)
	holder := uuid.New()

	_, err := f.svc.Reserve(ctx, holder, number.ID)
	require.NoError(t, err)

	err = f.svc.ReleaseReservation(ctx, uuid.New(), number.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	require.NoError(t, f.svc.ReleaseReservation(ctx, holder, number.ID))
	got, err := f.svc.AdminGet(ctx, number.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.MsisdnStatusAvailable, got.Status)
	assert.Nil(t, got.ReservedBy)
}

func TestBrowseAvailableFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "+919800000777", enums.MsisdnTierPlatinum)
	f.seed(t, "+919800000123", enums.MsisdnTierStandard)
	taken := f.seed(t, "+919800000778", enums.MsisdnTierPlatinum)
	_, err := f.svc.Reserve(ctx, uuid.New(), taken.ID)
	require.NoError(t, err)

	page, err := f.svc.BrowseAvailable(ctx, ListFilter{Pattern: "*777"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "+919800000777", page.Items[0].PhoneNumber)

	platinum := enums.MsisdnTierPlatinum
	page, err = f.svc.BrowseAvailable(ctx, ListFilter{Tier: &platinum}, pagination.Params{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total, "reserved numbers are not browsable")

	page, err = f.svc.BrowseAvailable(ctx, ListFilter{Region: "KA"}, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestSweepExpiredReleasesAndEmits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale := f.seed(t, "+919800000010", enums.MsisdnTierStandard)
	fresh := f.seed(t, "+919800000011", enums.MsisdnTierStandard)

	_, err := f.svc.Reserve(ctx, uuid.New(), stale.ID)
	require.NoError(t, err)
	f.advance(10 * time.Minute)
	_, err = f.svc.Reserve(ctx, uuid.New(), fresh.ID)
	require.NoError(t, err)
	f.advance(6 * time.Minute)

	released, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	got, _ := f.svc.AdminGet(ctx, stale.ID)
	assert.Equal(t, enums.MsisdnStatusAvailable, got.Status)
	got, _ = f.svc.AdminGet(ctx, fresh.ID)
	assert.Equal(t, enums.MsisdnStatusReserved, got.Status)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventReservationReleased, events[0].EventType)
	assert.Equal(t, stale.ID, events[0].AggregateID)
}

func TestCoolDownAndRecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	number := f.seed(t, "+919800000020", enums.MsisdnTierStandard)
	owner := uuid.New()

	_, err := f.svc.Reserve(ctx, owner, number.ID)
	require.NoError(t, err)
	ok, err := f.repo.Activate(ctx, number.ID, owner, *f.clock)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.repo.Activate(ctx, number.ID, owner, *f.clock)
	require.NoError(t, err)
	assert.True(t, ok, "activation is idempotent for the owner")

	ok, err = f.repo.CoolDown(ctx, number.ID, *f.clock, f.clock.AddDate(0, 0, 90))
	require.NoError(t, err)
	require.True(t, ok)

	n, err := f.svc.RecycleCooled(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.advance(91 * 24 * time.Hour)
	n, err = f.svc.RecycleCooled(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, _ := f.svc.AdminGet(ctx, number.ID)
	assert.Equal(t, enums.MsisdnStatusAvailable, got.Status)
	assert.Nil(t, got.CustomerID)
}

func TestHeldNumberSurvivesSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	number := f.seed(t, "+919800000030", enums.MsisdnTierStandard)
	buyer := uuid.New()

	err := f.conn.Transaction(func(tx *gorm.DB) error {
		row, err := f.svc.HoldTx(ctx, tx, buyer, number.ID)
		if err == nil {
			assert.Nil(t, row.ReservationExpiresAt)
		}
		return err
	})
	require.NoError(t, err)

	f.advance(time.Hour)
	released, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, released)

	_, err = f.svc.Reserve(ctx, uuid.New(), number.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
	_, err = f.svc.Reserve(ctx, buyer, number.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "a held number cannot go back to a timed reservation")
	err = f.svc.ReleaseReservation(ctx, buyer, number.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	got, _ := f.svc.AdminGet(ctx, number.ID)
	assert.Equal(t, enums.MsisdnStatusReserved, got.Status)
	require.NotNil(t, got.ReservedBy)
	assert.Equal(t, buyer, *got.ReservedBy)
}

func TestReclaimOnlyByLastOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	number := f.seed(t, "+919800000031", enums.MsisdnTierStandard)
	owner := uuid.New()

	_, err := f.svc.Reserve(ctx, owner, number.ID)
	require.NoError(t, err)
	ok, err := f.repo.Activate(ctx, number.ID, owner, *f.clock)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.repo.CoolDown(ctx, number.ID, *f.clock, f.clock.AddDate(0, 0, 90))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.repo.Reclaim(ctx, number.ID, uuid.New(), *f.clock)
	require.NoError(t, err)
	assert.False(t, ok, "a stranger cannot reclaim a cooling number")

	ok, err = f.repo.Reclaim(ctx, number.ID, owner, *f.clock)
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ := f.svc.AdminGet(ctx, number.ID)
	assert.Equal(t, enums.MsisdnStatusActive, got.Status)
}

func TestAdminCreateBulkUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{PhoneNumber: "98000", Region: "MH"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	existing := f.seed(t, "+919800000030", enums.MsisdnTierStandard)
	_, err = f.svc.Create(ctx, CreateInput{PhoneNumber: "+919800000030", Region: "MH"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	result, err := f.svc.BulkImport(ctx, []CreateInput{
		{PhoneNumber: "+919800000031", Region: "MH"},
		{PhoneNumber: "+919800000031", Region: "MH"},
		{PhoneNumber: "+919800000030", Region: "MH"},
		{PhoneNumber: "bad", Region: "MH"},
		{PhoneNumber: "+919800000032", Region: "DL", Tier: enums.MsisdnTierGold},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, []string{"bad"}, result.Rejected)

	gold := enums.MsisdnTierGold
	updated, err := f.svc.Update(ctx, existing.ID, UpdateInput{Tier: &gold})
	require.NoError(t, err)
	assert.Equal(t, enums.MsisdnTierGold, updated.Tier)

	_, err = f.svc.Reserve(ctx, uuid.New(), existing.ID)
	require.NoError(t, err)
	err = f.svc.Delete(ctx, existing.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	page, err := f.svc.AdminList(ctx, ListFilter{Region: "DL"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NoError(t, f.svc.Delete(ctx, page.Items[0].ID))

	err = f.svc.Delete(ctx, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
