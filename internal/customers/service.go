package customers

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

// Service exposes profile reads for customers and admins.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*CustomerDTO, error)
	List(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[CustomerDTO], error)
	UpdateKYCStatus(ctx context.Context, id uuid.UUID, status enums.KYCStatus) (*CustomerDTO, error)
	SetPaymentMethod(ctx context.Context, id uuid.UUID, stripeCustomerID, paymentMethodID string) (*CustomerDTO, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "customers repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CustomerDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "customer")
	}
	return FromModel(customer), nil
}

func (s *service) List(ctx context.Context, filter ListFilter, page pagination.Params) (types.Page[CustomerDTO], error) {
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return types.Page[CustomerDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customers")
	}
	items := make([]CustomerDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	return types.Page[CustomerDTO]{Items: items, Limit: page.Limit, Offset: page.Offset, Total: total}, nil
}

func (s *service) UpdateKYCStatus(ctx context.Context, id uuid.UUID, status enums.KYCStatus) (*CustomerDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid kyc status")
	}
	updated, err := s.repo.UpdateKYCStatus(ctx, id, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update kyc status")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return s.Get(ctx, id)
}

func (s *service) SetPaymentMethod(ctx context.Context, id uuid.UUID, stripeCustomerID, paymentMethodID string) (*CustomerDTO, error) {
	stripeCustomerID = strings.TrimSpace(stripeCustomerID)
	paymentMethodID = strings.TrimSpace(paymentMethodID)
	if !strings.HasPrefix(stripeCustomerID, "cus_") || !strings.HasPrefix(paymentMethodID, "pm_") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe customer (cus_) and payment method (pm_) references required")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePaymentProfile(ctx, id, stripeCustomerID, paymentMethodID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment method")
	}
	return s.Get(ctx, id)
}
