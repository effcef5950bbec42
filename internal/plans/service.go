package plans

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

// Service manages the tariff catalog.
type Service interface {
	ListActive(ctx context.Context, page pagination.Params) (types.Page[PlanDTO], error)
	GetActive(ctx context.Context, id uuid.UUID) (*PlanDTO, error)
	ListAll(ctx context.Context, page pagination.Params) (types.Page[PlanDTO], error)
	Create(ctx context.Context, input CreateInput) (*PlanDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*PlanDTO, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*PlanDTO, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plans repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListActive(ctx context.Context, page pagination.Params) (types.Page[PlanDTO], error) {
	return s.list(ctx, true, page)
}

func (s *service) ListAll(ctx context.Context, page pagination.Params) (types.Page[PlanDTO], error) {
	return s.list(ctx, false, page)
}

func (s *service) list(ctx context.Context, activeOnly bool, page pagination.Params) (types.Page[PlanDTO], error) {
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, activeOnly, page)
	if err != nil {
		return types.Page[PlanDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans")
	}
	items := make([]PlanDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	return types.Page[PlanDTO]{Items: items, Limit: page.Limit, Offset: page.Offset, Total: total}, nil
}

func (s *service) GetActive(ctx context.Context, id uuid.UUID) (*PlanDTO, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "plan")
	}
	if !plan.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return FromModel(plan), nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*PlanDTO, error) {
	code := strings.ToLower(strings.TrimSpace(input.Code))
	if code == "" || strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code and name are required")
	}
	if !input.PlanType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan type")
	}
	if input.PriceMinor < 0 || input.ValidityDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative and validity positive")
	}
	if input.DataQuotaMB < 0 || input.VoiceQuotaMinutes < 0 || input.SMSQuota < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quotas must be non-negative")
	}

	plan := &models.PlanConfiguration{
		Code:              code,
		Name:              strings.TrimSpace(input.Name),
		Description:       strings.TrimSpace(input.Description),
		PlanType:          input.PlanType,
		PriceMinor:        input.PriceMinor,
		DataQuotaMB:       input.DataQuotaMB,
		VoiceQuotaMinutes: input.VoiceQuotaMinutes,
		SMSQuota:          input.SMSQuota,
		ValidityDays:      input.ValidityDays,
		Active:            true,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "plan code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create plan")
	}
	return FromModel(plan), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*PlanDTO, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "plan")
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		plan.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		plan.Description = strings.TrimSpace(*input.Description)
	}
	for _, v := range []*int64{input.PriceMinor, input.DataQuotaMB, input.VoiceQuotaMinutes, input.SMSQuota} {
		if v != nil && *v < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amounts and quotas must be non-negative")
		}
	}
	if input.PriceMinor != nil {
		plan.PriceMinor = *input.PriceMinor
	}
	if input.DataQuotaMB != nil {
		plan.DataQuotaMB = *input.DataQuotaMB
	}
	if input.VoiceQuotaMinutes != nil {
		plan.VoiceQuotaMinutes = *input.VoiceQuotaMinutes
	}
	if input.SMSQuota != nil {
		plan.SMSQuota = *input.SMSQuota
	}
	if input.ValidityDays != nil {
		if *input.ValidityDays <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "validity must be positive")
		}
		plan.ValidityDays = *input.ValidityDays
	}
	if input.Active != nil {
		plan.Active = *input.Active
	}

	if err := s.repo.Save(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update plan")
	}
	return FromModel(plan), nil
}

// Deactivate hides the plan from the catalog. Existing subscriptions keep it.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) (*PlanDTO, error) {
	inactive := false
	return s.Update(ctx, id, UpdateInput{Active: &inactive})
}
