package roaming

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	ListPackages(ctx context.Context, country string) ([]PackageDTO, error)
	Activate(ctx context.Context, customerID, subscriptionID uuid.UUID, input ActivateInput) (*ActivationResult, error)
	ListActivations(ctx context.Context, customerID, subscriptionID uuid.UUID) ([]ActivationDTO, error)

	AdminListPackages(ctx context.Context) ([]PackageDTO, error)
	CreatePackage(ctx context.Context, input PackageInput) (*PackageDTO, error)
	UpdatePackage(ctx context.Context, id uuid.UUID, input PackageUpdate) (*PackageDTO, error)
}

type ServiceParams struct {
	Repo          *Repository
	Subscriptions *subscriptions.Repository
	Payments      payments.Service
	Tx            txRunner
	Now           func() time.Time
}

type service struct {
	repo     *Repository
	subs     *subscriptions.Repository
	payments payments.Service
	tx       txRunner
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil || params.Subscriptions == nil {
		return nil, fmt.Errorf("roaming and subscription repositories required")
	}
	if params.Payments == nil || params.Tx == nil {
		return nil, fmt.Errorf("payments service and tx runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: params.Repo, subs: params.Subscriptions, payments: params.Payments, tx: params.Tx, now: now}, nil
}

func (s *service) ListPackages(ctx context.Context, country string) ([]PackageDTO, error) {
	rows, err := s.repo.ListPackages(ctx, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list roaming packages")
	}
	country = strings.TrimSpace(country)
	out := make([]PackageDTO, 0, len(rows))
	for i := range rows {
		if country != "" && !rows[i].CoversCountry(country) {
			continue
		}
		out = append(out, *PackageFromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) AdminListPackages(ctx context.Context) ([]PackageDTO, error) {
	rows, err := s.repo.ListPackages(ctx, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list roaming packages")
	}
	out := make([]PackageDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *PackageFromModel(&rows[i]))
	}
	return out, nil
}

// Activate buys a package for an active line travelling to country. One live package per
// country per line.
func (s *service) Activate(ctx context.Context, customerID, subscriptionID uuid.UUID, input ActivateInput) (*ActivationResult, error) {
	country := strings.ToUpper(strings.TrimSpace(input.Country))
	if len(country) != 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "country must be an ISO alpha-2 code")
	}

	var (
		activation *models.RoamingActivation
		bill       *payments.Bill
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		sub, err := s.subs.WithTx(tx).FindForCustomer(ctx, customerID, subscriptionID)
		if err != nil {
			return db.MapError(err, "subscription")
		}
		if sub.Status != enums.SubscriptionStatusActive {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot add roaming to a %s subscription", sub.Status)
		}
		repo := s.repo.WithTx(tx)
		pkg, err := repo.FindPackage(ctx, input.PackageID)
		if err != nil {
			return db.MapError(err, "roaming package")
		}
		if !pkg.Active {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "roaming package is not available")
		}
		if !pkg.CoversCountry(country) {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "package %s does not cover %s", pkg.Code, country)
		}

		now := s.now()
		live, err := repo.CountLive(ctx, sub.ID, country, now)
		if err != nil {
			return err
		}
		if live > 0 {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "a roaming package for %s is already active", country)
		}

		bill, err = s.payments.BillTx(ctx, tx, invoices.IssueInput{
			CustomerID:     customerID,
			SubscriptionID: &sub.ID,
			LineItems:      types.LineItems{{Description: fmt.Sprintf("Roaming %s (%s)", pkg.Name, country), Amount: pkg.PriceMinor, Quantity: 1}},
			Reason:         invoices.ReasonRoaming,
		})
		if err != nil {
			return err
		}
		activation = &models.RoamingActivation{
			SubscriptionID:  sub.ID,
			PackageID:       pkg.ID,
			InvoiceID:       &bill.Invoice.ID,
			Country:         country,
			DataRemainingMB: pkg.DataMB,
			StartsAt:        now,
			ExpiresAt:       now.AddDate(0, 0, pkg.ValidityDays),
			CreatedAt:       now,
		}
		return repo.CreateActivation(ctx, activation)
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "activate roaming")
	}

	result := &ActivationResult{Activation: ActivationFromModel(activation), Invoice: invoices.FromModel(bill.Invoice)}
	result.Payment = s.payments.CollectBill(ctx, bill)
	if result.Payment != nil && result.Payment.Status == enums.PaymentAttemptSucceeded {
		result.Invoice.Status = enums.InvoiceStatusPaid
	}
	return result, nil
}

func (s *service) ListActivations(ctx context.Context, customerID, subscriptionID uuid.UUID) ([]ActivationDTO, error) {
	if _, err := s.subs.FindForCustomer(ctx, customerID, subscriptionID); err != nil {
		return nil, db.MapError(err, "subscription")
	}
	rows, err := s.repo.ListActivations(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list roaming activations")
	}
	out := make([]ActivationDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *ActivationFromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) CreatePackage(ctx context.Context, input PackageInput) (*PackageDTO, error) {
	code := strings.ToLower(strings.TrimSpace(input.Code))
	name := strings.TrimSpace(input.Name)
	countries, err := normalizeCountries(input.Countries)
	if err != nil {
		return nil, err
	}
	switch {
	case code == "" || name == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code and name are required")
	case input.PriceMinor <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	case input.ValidityDays < 1:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validity must be at least one day")
	case input.DataMB < 0 || input.VoiceMinutes < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "allowances must be non-negative")
	}
	pkg := &models.RoamingPackage{
		Code:         code,
		Name:         name,
		Countries:    countries,
		PriceMinor:   input.PriceMinor,
		DataMB:       input.DataMB,
		VoiceMinutes: input.VoiceMinutes,
		ValidityDays: input.ValidityDays,
		Active:       true,
	}
	if err := s.repo.CreatePackage(ctx, pkg); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "roaming package %q exists", code)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create roaming package")
	}
	return PackageFromModel(pkg), nil
}

func (s *service) UpdatePackage(ctx context.Context, id uuid.UUID, input PackageUpdate) (*PackageDTO, error) {
	pkg, err := s.repo.FindPackage(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "roaming package")
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		pkg.Name = name
	}
	if input.Countries != nil {
		countries, err := normalizeCountries(input.Countries)
		if err != nil {
			return nil, err
		}
		pkg.Countries = countries
	}
	if input.PriceMinor != nil {
		if *input.PriceMinor <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		pkg.PriceMinor = *input.PriceMinor
	}
	if input.Active != nil {
		pkg.Active = *input.Active
	}
	if err := s.repo.SavePackage(ctx, pkg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update roaming package")
	}
	return PackageFromModel(pkg), nil
}

func normalizeCountries(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.ToUpper(strings.TrimSpace(c))
		if len(c) != 2 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid country code %q", c)
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one country is required")
	}
	return out, nil
}
