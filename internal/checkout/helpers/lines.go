package helpers

import (
	"fmt"

	"github.com/angelmondragon/telcobill-backend/internal/msisdn"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

// BuildOrderLines prices a SIM order: the first plan period, the activation fee, and the
// number's tier surcharge when it has one.
func BuildOrderLines(plan *models.PlanConfiguration, number *models.MsisdnInventory, simFeeMinor int64) types.LineItems {
	lines := types.LineItems{
		{Description: fmt.Sprintf("%s (%d days)", plan.Name, plan.ValidityDays), Amount: plan.PriceMinor, Quantity: 1},
	}
	if simFeeMinor > 0 {
		lines = append(lines, types.LineItem{Description: "SIM activation fee", Amount: simFeeMinor, Quantity: 1})
	}
	if surcharge := msisdn.TierSurcharge(number.Tier); surcharge > 0 {
		lines = append(lines, types.LineItem{Description: fmt.Sprintf("%s number %s", number.Tier, number.PhoneNumber), Amount: surcharge, Quantity: 1})
	}
	return lines
}
