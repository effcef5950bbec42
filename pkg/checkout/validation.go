package checkout

import (
	"fmt"

	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
)

// DefaultMaxLines caps how many live lines one customer may hold.
const DefaultMaxLines = 5

// EligibilityInput describes the customer placing a SIM order.
type EligibilityInput struct {
	KYCStatus        enums.KYCStatus
	AccountActive    bool
	HasPaymentMethod bool
	LiveLines        int64
	MaxLines         int
}

// Violation is one reason an order was refused.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidateEligibility collects every rule the customer fails so the client can show them together.
func ValidateEligibility(in EligibilityInput) error {
	maxLines := in.MaxLines
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}

	var violations []Violation
	if !in.AccountActive {
		violations = append(violations, Violation{Rule: "account_active", Message: "account is deactivated"})
	}
	if in.KYCStatus != enums.KYCStatusVerified {
		violations = append(violations, Violation{Rule: "kyc_verified", Message: fmt.Sprintf("identity verification is %s", in.KYCStatus)})
	}
	if !in.HasPaymentMethod {
		violations = append(violations, Violation{Rule: "payment_method", Message: "no payment method on file"})
	}
	if in.LiveLines >= int64(maxLines) {
		violations = append(violations, Violation{Rule: "line_limit", Message: fmt.Sprintf("customers may hold at most %d lines", maxLines)})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "customer is not eligible for a new line (%d issue(s))", len(violations)).WithDetails(map[string]any{
		"violations": violations,
	})
}
