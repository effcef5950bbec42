package msisdn

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

const (
	DefaultReservationTTL = 15 * time.Minute
	sweepBatchSize        = 500
)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

var tierSurcharges = map[enums.MsisdnTier]int64{
	enums.MsisdnTierStandard: 0,
	enums.MsisdnTierGold:     49900,
	enums.MsisdnTierPlatinum: 99900,
}

// TierSurcharge is the one-time price of a vanity number in minor units.
func TierSurcharge(tier enums.MsisdnTier) int64 {
	return tierSurcharges[tier]
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the number pool for customers, admins and the sweep jobs.
type Service interface {
	BrowseAvailable(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[NumberDTO], error)
	Reserve(ctx context.Context, customerID, id uuid.UUID) (*NumberDTO, error)
	ReleaseReservation(ctx context.Context, customerID, id uuid.UUID) error
	ClaimTx(ctx context.Context, tx *gorm.DB, customerID, id uuid.UUID) (*models.MsisdnInventory, error)
	HoldTx(ctx context.Context, tx *gorm.DB, customerID, id uuid.UUID) (*models.MsisdnInventory, error)

	AdminList(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[AdminNumberDTO], error)
	AdminGet(ctx context.Context, id uuid.UUID) (*AdminNumberDTO, error)
	Create(ctx context.Context, input CreateInput) (*AdminNumberDTO, error)
	BulkImport(ctx context.Context, inputs []CreateInput) (*BulkImportResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*AdminNumberDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error

	SweepExpired(ctx context.Context) (int, error)
	RecycleCooled(ctx context.Context) (int64, error)
}

type ServiceParams struct {
	Repo           *Repository
	Tx             txRunner
	Outbox         outbox.Emitter
	Logger         *logger.Logger
	ReservationTTL time.Duration
	Now            func() time.Time
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
	ttl    time.Duration
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "msisdn repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	ttl := params.ReservationTTL
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   params.Logger,
		ttl:    ttl,
		now:    now,
	}, nil
}

func (s *service) BrowseAvailable(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[NumberDTO], error) {
	available := enums.MsisdnStatusAvailable
	filter.Status = &available
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return types.Page[NumberDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list numbers")
	}
	items := make([]NumberDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	return types.Page[NumberDTO]{Items: items, Limit: page.Limit, Offset: page.Offset, Total: total}, nil
}

func (s *service) Reserve(ctx context.Context, customerID, id uuid.UUID) (*NumberDTO, error) {
	var row *models.MsisdnInventory
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claimed, err := s.ClaimTx(ctx, tx, customerID, id)
		row = claimed
		return err
	})
	if err != nil {
		return nil, err
	}
	return FromModel(row), nil
}

// ClaimTx runs the atomic claim inside the caller's transaction.
func (s *service) ClaimTx(ctx context.Context, tx *gorm.DB, customerID, id uuid.UUID) (*models.MsisdnInventory, error) {
	if customerID == uuid.Nil || id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer and number ids required")
	}
	repo := s.repo.WithTx(tx)
	now := s.now()
	ok, err := repo.Claim(ctx, id, customerID, now, now.Add(s.ttl))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim number")
	}
	if !ok {
		if _, err := repo.FindByID(ctx, id); err != nil {
			return nil, db.MapError(err, "number")
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "number is not available")
	}
	row, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "number")
	}
	return row, nil
}

// HoldTx claims the number and pins it for an order placed in tx.
func (s *service) HoldTx(ctx context.Context, tx *gorm.DB, customerID, id uuid.UUID) (*models.MsisdnInventory, error) {
	row, err := s.ClaimTx(ctx, tx, customerID, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.WithTx(tx).Pin(ctx, id, customerID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pin number")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "number is not available")
	}
	row.ReservationExpiresAt = nil
	return row, nil
}

func (s *service) ReleaseReservation(ctx context.Context, customerID, id uuid.UUID) error {
	ok, err := s.repo.Release(ctx, id, customerID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release number")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no active reservation for this number")
	}
	return nil
}

func (s *service) AdminList(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[AdminNumberDTO], error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return types.Page[AdminNumberDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if filter.Tier != nil && !filter.Tier.IsValid() {
		return types.Page[AdminNumberDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid tier filter")
	}
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return types.Page[AdminNumberDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list numbers")
	}
	items := make([]AdminNumberDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *AdminFromModel(&rows[i]))
	}
	return types.Page[AdminNumberDTO]{Items: items, Limit: page.Limit, Offset: page.Offset, Total: total}, nil
}

func (s *service) AdminGet(ctx context.Context, id uuid.UUID) (*AdminNumberDTO, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "number")
	}
	return AdminFromModel(row), nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*AdminNumberDTO, error) {
	row, err := newInventoryRow(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, db.MapError(err, "number")
	}
	return AdminFromModel(row), nil
}

// BulkImport inserts valid numbers and skips ones already in inventory.
func (s *service) BulkImport(ctx context.Context, inputs []CreateInput) (*BulkImportResult, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one number required")
	}
	result := &BulkImportResult{}
	seen := make(map[string]struct{}, len(inputs))
	rows := make([]models.MsisdnInventory, 0, len(inputs))
	for _, input := range inputs {
		row, err := newInventoryRow(input)
		if err != nil {
			result.Rejected = append(result.Rejected, input.PhoneNumber)
			continue
		}
		if _, dup := seen[row.PhoneNumber]; dup {
			result.Skipped++
			continue
		}
		seen[row.PhoneNumber] = struct{}{}
		if _, err := s.repo.FindByNumber(ctx, row.PhoneNumber); err == nil {
			result.Skipped++
			continue
		} else if !db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup number")
		}
		rows = append(rows, *row)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateBatch(ctx, rows)
	})
	if err != nil {
		return nil, db.MapError(err, "number")
	}
	result.Created = len(rows)
	return result, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*AdminNumberDTO, error) {
	updates := map[string]any{"updated_at": s.now()}
	if input.Tier != nil {
		if !input.Tier.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid tier")
		}
		updates["tier"] = *input.Tier
	}
	if input.Region != nil {
		region := strings.TrimSpace(*input.Region)
		if region == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "region cannot be empty")
		}
		updates["region"] = region
	}
	ok, err := s.repo.UpdateAttributes(ctx, id, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update number")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "number not found")
	}
	return s.AdminGet(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.DeleteAvailable(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete number")
	}
	if ok {
		return nil
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return db.MapError(err, "number")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "only available numbers can be deleted")
}

// SweepExpired releases lapsed reservations one row at a time so each release commits
// with its reservation_released event.
func (s *service) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.repo.ExpiredReservations(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load expired reservations")
	}

	released := 0
	for i := range expired {
		row := expired[i]
		var freed bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := s.repo.WithTx(tx).ReleaseExpired(ctx, row.ID, now)
			if err != nil || !ok {
				return err
			}
			freed = true
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventReservationReleased,
				AggregateType: enums.AggregateMsisdn,
				AggregateID:   row.ID,
				Data: payloads.ReservationReleasedEvent{
					MsisdnID:    row.ID,
					PhoneNumber: row.PhoneNumber,
					ReservedBy:  row.ReservedBy,
					Reason:      "reservation_expired",
				},
			})
		})
		if err != nil {
			return released, err
		}
		if freed {
			released++
		}
	}
	if s.logg != nil && released > 0 {
		s.logg.Info(s.logg.WithField(ctx, "released", released), "expired reservations released")
	}
	return released, nil
}

func (s *service) RecycleCooled(ctx context.Context) (int64, error) {
	n, err := s.repo.RecycleCooled(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recycle numbers")
	}
	return n, nil
}

func newInventoryRow(input CreateInput) (*models.MsisdnInventory, error) {
	number := strings.TrimSpace(input.PhoneNumber)
	if !e164.MatchString(number) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone number must be E.164")
	}
	region := strings.TrimSpace(input.Region)
	if region == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "region required")
	}
	tier := input.Tier
	if tier == "" {
		tier = enums.MsisdnTierStandard
	}
	if !tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid tier")
	}
	return &models.MsisdnInventory{
		PhoneNumber: number,
		Status:      enums.MsisdnStatusAvailable,
		Tier:        tier,
		Region:      region,
	}, nil
}
