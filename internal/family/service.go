package family

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/plans"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
)

const (
	MinMembers        = 2
	MaxMembers        = 10
	defaultMaxMembers = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, input CreateInput) (*PlanDTO, error)
	List(ctx context.Context, customerID uuid.UUID) ([]PlanDTO, error)
	Get(ctx context.Context, customerID, id uuid.UUID) (*PlanDTO, error)
	AddMember(ctx context.Context, ownerID, id uuid.UUID, input AddMemberInput) (*PlanDTO, error)
	RemoveMember(ctx context.Context, customerID, id, memberID uuid.UUID) (*PlanDTO, error)
	Dissolve(ctx context.Context, ownerID, id uuid.UUID) error
}

type ServiceParams struct {
	Repo          *Repository
	Subscriptions *subscriptions.Repository
	Plans         *plans.Repository
	Tx            txRunner
	Now           func() time.Time
}

type service struct {
	repo  *Repository
	subs  *subscriptions.Repository
	plans *plans.Repository
	tx    txRunner
	now   func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil || params.Subscriptions == nil || params.Plans == nil {
		return nil, fmt.Errorf("family, subscription and plan repositories required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: params.Repo, subs: params.Subscriptions, plans: params.Plans, tx: params.Tx, now: now}, nil
}

// Create starts a family plan around one of the owner's active lines. Without an explicit
// pool size the primary line's plan quota is shared.
func (s *service) Create(ctx context.Context, ownerID uuid.UUID, input CreateInput) (*PlanDTO, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "family plan name is required")
	}
	if input.MaxMembers == 0 {
		input.MaxMembers = defaultMaxMembers
	}
	if input.MaxMembers < MinMembers || input.MaxMembers > MaxMembers {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "max members must be between %d and %d", MinMembers, MaxMembers)
	}
	if input.SharedDataMB < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shared data must be non-negative")
	}

	var planID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		sub, err := s.subs.WithTx(tx).FindForCustomer(ctx, ownerID, input.PrimarySubscriptionID)
		if err != nil {
			return db.MapError(err, "subscription")
		}
		if sub.Status != enums.SubscriptionStatusActive {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "primary subscription is %s", sub.Status)
		}
		shared := input.SharedDataMB
		if shared == 0 {
			plan, err := s.plans.WithTx(tx).FindByID(ctx, sub.PlanID)
			if err != nil {
				return db.MapError(err, "plan")
			}
			shared = plan.DataQuotaMB
		}

		repo := s.repo.WithTx(tx)
		family := &models.FamilyPlan{
			Name:                  input.Name,
			OwnerCustomerID:       ownerID,
			PrimarySubscriptionID: sub.ID,
			SharedDataMB:          shared,
			MaxMembers:            input.MaxMembers,
			Status:                enums.FamilyPlanActive,
			CreatedAt:             s.now(),
		}
		if err := repo.CreatePlan(ctx, family); err != nil {
			return db.MapError(err, "family plan")
		}
		planID = family.ID
		return s.joinTx(ctx, repo, family.ID, sub, enums.FamilyMemberOwner, nil)
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "create family plan")
	}
	return s.load(ctx, planID)
}

func (s *service) joinTx(ctx context.Context, repo *Repository, planID uuid.UUID, sub *models.Subscription, role enums.FamilyMemberRole, limit *int64) error {
	err := repo.CreateMember(ctx, &models.FamilyMember{
		FamilyPlanID:   planID,
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		Role:           role,
		DataLimitMB:    limit,
		JoinedAt:       s.now(),
	})
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "subscription already belongs to a family plan")
	}
	return err
}

func (s *service) List(ctx context.Context, customerID uuid.UUID) ([]PlanDTO, error) {
	rows, err := s.repo.ListForCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list family plans")
	}
	out := make([]PlanDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

// Get is visible to the owner and to every member.
func (s *service) Get(ctx context.Context, customerID, id uuid.UUID) (*PlanDTO, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "family plan")
	}
	if !visibleTo(plan, customerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "family plan not found")
	}
	return FromModel(plan), nil
}

func visibleTo(plan *models.FamilyPlan, customerID uuid.UUID) bool {
	if plan.OwnerCustomerID == customerID {
		return true
	}
	for _, m := range plan.Members {
		if m.CustomerID == customerID {
			return true
		}
	}
	return false
}

func (s *service) AddMember(ctx context.Context, ownerID, id uuid.UUID, input AddMemberInput) (*PlanDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		plan, err := s.ownedActive(ctx, repo, ownerID, id)
		if err != nil {
			return err
		}
		if input.DataLimitMB != nil && (*input.DataLimitMB < 0 || *input.DataLimitMB > plan.SharedDataMB) {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "data limit must be between 0 and %d MB", plan.SharedDataMB)
		}
		count, err := repo.CountMembers(ctx, plan.ID)
		if err != nil {
			return err
		}
		if int(count) >= plan.MaxMembers {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "family plan is full (%d members)", plan.MaxMembers)
		}
		sub, err := s.subs.WithTx(tx).FindByID(ctx, input.SubscriptionID)
		if err != nil {
			return db.MapError(err, "subscription")
		}
		if sub.Status != enums.SubscriptionStatusActive {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "subscription is %s", sub.Status)
		}
		return s.joinTx(ctx, repo, plan.ID, sub, enums.FamilyMemberMember, input.DataLimitMB)
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "add family member")
	}
	return s.load(ctx, id)
}

// RemoveMember lets the owner remove anyone but themselves, and a member leave on their own.
func (s *service) RemoveMember(ctx context.Context, customerID, id, memberID uuid.UUID) (*PlanDTO, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "family plan")
	}
	if !visibleTo(plan, customerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "family plan not found")
	}
	var target *models.FamilyMember
	for i := range plan.Members {
		if plan.Members[i].ID == memberID {
			target = &plan.Members[i]
		}
	}
	if target == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "family member not found")
	}
	if target.Role == enums.FamilyMemberOwner {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "the owner cannot leave; dissolve the plan instead")
	}
	if plan.OwnerCustomerID != customerID && target.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the owner can remove other members")
	}
	if _, err := s.repo.DeleteMember(ctx, plan.ID, memberID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove family member")
	}
	return s.load(ctx, id)
}

func (s *service) Dissolve(ctx context.Context, ownerID, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.ownedActive(ctx, repo, ownerID, id); err != nil {
			return err
		}
		_, err := repo.Dissolve(ctx, id)
		return err
	})
	return pkgerrors.Ensure(err, pkgerrors.CodeDependency, "dissolve family plan")
}

func (s *service) ownedActive(ctx context.Context, repo *Repository, ownerID, id uuid.UUID) (*models.FamilyPlan, error) {
	plan, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "family plan")
	}
	if !visibleTo(plan, ownerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "family plan not found")
	}
	if plan.OwnerCustomerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the owner can change the family plan")
	}
	if plan.Status != enums.FamilyPlanActive {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "family plan is %s", plan.Status)
	}
	return plan, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*PlanDTO, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "family plan")
	}
	return FromModel(plan), nil
}
