package insurance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/billing"
	"github.com/angelmondragon/telcobill-backend/internal/devicecontracts"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
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
	Purchase(ctx context.Context, customerID, contractID uuid.UUID, input PurchaseInput) (*PurchaseResult, error)
	List(ctx context.Context, customerID uuid.UUID) ([]PolicyDTO, error)
	Claim(ctx context.Context, customerID, id uuid.UUID, input ClaimInput) (*ClaimResult, error)
	Cancel(ctx context.Context, customerID, id uuid.UUID) (*PolicyDTO, error)
	CancelForContractTx(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) error
}

type ServiceParams struct {
	Repo      *Repository
	Contracts *devicecontracts.Repository
	Payments  payments.Service
	Tx        txRunner
	Now       func() time.Time
}

type service struct {
	repo      *Repository
	contracts *devicecontracts.Repository
	payments  payments.Service
	tx        txRunner
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil || params.Contracts == nil {
		return nil, fmt.Errorf("insurance and contract repositories required")
	}
	if params.Payments == nil || params.Tx == nil {
		return nil, fmt.Errorf("payments service and tx runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: params.Repo, contracts: params.Contracts, payments: params.Payments, tx: params.Tx, now: now}, nil
}

// Purchase insures the device of an active contract for a fixed term and invoices the
// first monthly premium.
func (s *service) Purchase(ctx context.Context, customerID, contractID uuid.UUID, input PurchaseInput) (*PurchaseResult, error) {
	var (
		policy *models.DeviceInsurance
		bill   *payments.Bill
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		contract, err := s.contracts.WithTx(tx).FindForCustomer(ctx, customerID, contractID)
		if err != nil {
			return db.MapError(err, "device contract")
		}
		if contract.Status != enums.DeviceContractActive {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "contract is %s", contract.Status)
		}
		quote, err := billing.QuoteInsurance(input.CoverageTier, contract.DevicePriceMinor)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		exists, err := repo.HasActiveForContract(ctx, contract.ID)
		if err != nil {
			return err
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeConflict, "device is already insured")
		}

		now := s.now()
		policy = &models.DeviceInsurance{
			DeviceContractID:    contract.ID,
			CustomerID:          customerID,
			CoverageTier:        quote.Tier,
			MonthlyPremiumMinor: quote.MonthlyPremiumMinor,
			CoverageAmountMinor: quote.CoverageAmountMinor,
			Status:              enums.InsuranceActive,
			StartsAt:            now,
			ExpiresAt:           now.AddDate(0, billing.InsuranceTermMonths, 0),
			CreatedAt:           now,
		}
		if err := repo.Create(ctx, policy); err != nil {
			return db.MapError(err, "insurance")
		}

		bill, err = s.payments.BillTx(ctx, tx, invoices.IssueInput{
			CustomerID:     customerID,
			SubscriptionID: contract.SubscriptionID,
			LineItems: types.LineItems{{
				Description: fmt.Sprintf("%s insurance (%s), first month", contract.DeviceName, quote.Tier),
				Amount:      quote.MonthlyPremiumMinor,
				Quantity:    1,
			}},
			Reason: invoices.ReasonInsurance,
		})
		return err
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "purchase insurance")
	}

	result := &PurchaseResult{Policy: FromModel(policy), Invoice: invoices.FromModel(bill.Invoice)}
	result.Payment = s.payments.CollectBill(ctx, bill)
	if result.Payment != nil && result.Payment.Status == enums.PaymentAttemptSucceeded {
		result.Invoice.Status = enums.InvoiceStatusPaid
	}
	return result, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID) ([]PolicyDTO, error) {
	rows, err := s.repo.ListForCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list insurance")
	}
	out := make([]PolicyDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

// Claim files a claim against an active, unexpired policy. The last allowed claim moves
// the policy to claimed.
func (s *service) Claim(ctx context.Context, customerID, id uuid.UUID, input ClaimInput) (*ClaimResult, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "claim description is required")
	}
	policy, err := s.repo.FindForCustomer(ctx, customerID, id)
	if err != nil {
		return nil, db.MapError(err, "insurance")
	}
	now := s.now()
	if policy.Status != enums.InsuranceActive {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "policy is %s", policy.Status)
	}
	if !now.Before(policy.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "policy has expired")
	}

	claims := policy.ClaimsCount + 1
	updates := map[string]any{
		"claims_count":      claims,
		"claim_description": description,
		"claimed_at":        now,
		"updated_at":        now,
	}
	if claims >= billing.MaxClaims(policy.CoverageTier) {
		updates["status"] = enums.InsuranceClaimed
	}
	ok, err := s.repo.RecordClaim(ctx, policy.ID, policy.ClaimsCount, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record claim")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "policy changed concurrently")
	}
	updated, err := s.repo.FindForCustomer(ctx, customerID, id)
	if err != nil {
		return nil, db.MapError(err, "insurance")
	}
	return &ClaimResult{Policy: FromModel(updated), PayoutMinor: updated.CoverageAmountMinor}, nil
}

func (s *service) Cancel(ctx context.Context, customerID, id uuid.UUID) (*PolicyDTO, error) {
	policy, err := s.repo.FindForCustomer(ctx, customerID, id)
	if err != nil {
		return nil, db.MapError(err, "insurance")
	}
	ok, err := s.repo.Cancel(ctx, policy.ID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel insurance")
	}
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "policy is %s", policy.Status)
	}
	updated, err := s.repo.FindForCustomer(ctx, customerID, id)
	if err != nil {
		return nil, db.MapError(err, "insurance")
	}
	return FromModel(updated), nil
}

// CancelForContractTx runs when the financed device contract is terminated.
func (s *service) CancelForContractTx(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) error {
	_, err := s.repo.WithTx(tx).CancelForContract(ctx, contractID, s.now())
	return err
}
