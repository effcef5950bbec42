package billing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

// TaxRatePercent is the flat rate applied to every invoice subtotal.
const TaxRatePercent = 18

var taxRate = decimal.New(TaxRatePercent, -2)

// InvoiceTotals is the money summary of an invoice. Total is always Subtotal + Tax.
type InvoiceTotals struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// CalculateInvoiceTotals sums item amounts as given. LineItem.Quantity is informational:
// callers pass amounts already multiplied by quantity.
func CalculateInvoiceTotals(items types.LineItems) InvoiceTotals {
	var subtotal int64
	for _, item := range items {
		subtotal += item.Amount
	}
	return TotalsForSubtotal(subtotal)
}

// TotalsForSubtotal applies the tax rate to a precomputed subtotal.
func TotalsForSubtotal(subtotal int64) InvoiceTotals {
	tax := roundMinor(decimal.NewFromInt(subtotal).Mul(taxRate))
	return InvoiceTotals{Subtotal: subtotal, Tax: tax, Total: subtotal + tax}
}
