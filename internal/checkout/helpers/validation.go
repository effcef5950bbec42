package helpers

import (
	"github.com/angelmondragon/telcobill-backend/pkg/checkout"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
)

// ValidateCustomer checks the customer against the line eligibility rules.
func ValidateCustomer(customer *models.CustomerProfile, liveLines int64, maxLines int) error {
	if customer == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return checkout.ValidateEligibility(checkout.EligibilityInput{
		KYCStatus:        customer.KYCStatus,
		AccountActive:    customer.IsActive,
		HasPaymentMethod: customer.DefaultPaymentMethodID != nil && *customer.DefaultPaymentMethodID != "",
		LiveLines:        liveLines,
		MaxLines:         maxLines,
	})
}

// ValidatePlan confirms the plan is on sale and sized for a new line.
func ValidatePlan(plan *models.PlanConfiguration) error {
	if plan == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	if !plan.Active {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "plan is not available")
	}
	if plan.ValidityDays <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan has no validity period")
	}
	return nil
}
