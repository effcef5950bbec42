package enums

type FamilyPlanStatus string

const (
	FamilyPlanActive    FamilyPlanStatus = "active"
	FamilyPlanDissolved FamilyPlanStatus = "dissolved"
)

func (s FamilyPlanStatus) IsValid() bool {
	return oneOf([]FamilyPlanStatus{FamilyPlanActive, FamilyPlanDissolved}, s)
}

type FamilyMemberRole string

const (
	FamilyMemberOwner  FamilyMemberRole = "owner"
	FamilyMemberMember FamilyMemberRole = "member"
)

func (r FamilyMemberRole) IsValid() bool {
	return oneOf([]FamilyMemberRole{FamilyMemberOwner, FamilyMemberMember}, r)
}
