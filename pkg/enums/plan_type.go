package enums

// PlanType separates prepaid recharge plans from postpaid billed plans.
type PlanType string

const (
	PlanTypePrepaid  PlanType = "prepaid"
	PlanTypePostpaid PlanType = "postpaid"
)

var validPlanTypes = []PlanType{PlanTypePrepaid, PlanTypePostpaid}

func (p PlanType) IsValid() bool {
	return oneOf(validPlanTypes, p)
}

func ParsePlanType(value string) (PlanType, error) {
	return parseOneOf(validPlanTypes, value, "plan type")
}
