package billing

import (
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
)

var earlyTerminationMultiplier = decimal.RequireFromString("1.2")

// Installment describes the repayment schedule of a financed device.
type Installment struct {
	Principal           int64 `json:"principal"`
	InstallmentAmount   int64 `json:"installment_amount"`
	InstallmentCount    int   `json:"installment_count"`
	EarlyTerminationFee int64 `json:"early_termination_fee"`
}

// CalculateInstallment splits price-down over count months. The early termination fee is
// 120% of the financed principal.
func CalculateInstallment(price, down int64, count int) (Installment, error) {
	switch {
	case count < 1:
		return Installment{}, pkgerrors.New(pkgerrors.CodeValidation, "installment count must be at least 1")
	case price < 0 || down < 0:
		return Installment{}, pkgerrors.New(pkgerrors.CodeValidation, "device price and down payment must be non-negative")
	case down > price:
		return Installment{}, pkgerrors.New(pkgerrors.CodeValidation, "down payment cannot exceed device price")
	}

	principal := decimal.NewFromInt(price - down)
	return Installment{
		Principal:           price - down,
		InstallmentAmount:   roundMinor(principal.Div(decimal.NewFromInt(int64(count)))),
		InstallmentCount:    count,
		EarlyTerminationFee: roundMinor(principal.Mul(earlyTerminationMultiplier)),
	}, nil
}

// NextPaymentDate is one calendar month after from.
func NextPaymentDate(from time.Time) time.Time {
	return from.AddDate(0, 1, 0)
}

// EarlyTerminationQuote is what a customer owes to close a contract now: the remaining
// installments plus a fee proportional to what is left of the original ETF.
func EarlyTerminationQuote(in Installment, installmentsPaid int) int64 {
	if in.InstallmentCount < 1 || installmentsPaid >= in.InstallmentCount {
		return 0
	}
	remaining := int64(in.InstallmentCount - installmentsPaid)
	return roundMinor(decimal.NewFromInt(in.EarlyTerminationFee).
		Mul(decimal.NewFromInt(remaining)).
		Div(decimal.NewFromInt(int64(in.InstallmentCount))))
}
