package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// CycleDays is the fixed billing cycle length used for proration, whatever the calendar month.
	CycleDays = 30
	day       = 24 * time.Hour
)

// Proration is the outcome of a mid-cycle plan change. A positive Net is owed by the
// customer, a negative Net is credited back.
type Proration struct {
	DaysRemaining int   `json:"days_remaining"`
	Credit        int64 `json:"credit"`
	Charge        int64 `json:"charge"`
	Net           int64 `json:"net"`
}

// CalculateProration credits the unused part of the old plan and charges the same span on the
// new plan. Renewal dates in the past produce a zero result.
func CalculateProration(oldPrice, newPrice int64, renewal, now time.Time) Proration {
	days := DaysRemaining(renewal, now)
	credit := prorate(oldPrice, days)
	charge := prorate(newPrice, days)
	return Proration{
		DaysRemaining: days,
		Credit:        credit,
		Charge:        charge,
		Net:           charge - credit,
	}
}

// DaysRemaining is ceil((renewal-now)/1d) clamped to [0, CycleDays].
func DaysRemaining(renewal, now time.Time) int {
	left := renewal.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / day)
	if left%day != 0 {
		days++
	}
	if days > CycleDays {
		return CycleDays
	}
	return days
}

func prorate(price int64, days int) int64 {
	if days == 0 {
		return 0
	}
	return roundMinor(decimal.NewFromInt(price).
		Mul(decimal.NewFromInt(int64(days))).
		Div(decimal.NewFromInt(CycleDays)))
}

// roundMinor rounds half away from zero to whole minor units.
func roundMinor(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
