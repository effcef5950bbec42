package family

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

type MemberDTO struct {
	ID             uuid.UUID              `json:"id"`
	SubscriptionID uuid.UUID              `json:"subscription_id"`
	CustomerID     uuid.UUID              `json:"customer_id"`
	Role           enums.FamilyMemberRole `json:"role"`
	DataLimitMB    *int64                 `json:"data_limit_mb,omitempty"`
	JoinedAt       time.Time              `json:"joined_at"`
}

type PlanDTO struct {
	ID                    uuid.UUID              `json:"id"`
	Name                  string                 `json:"name"`
	OwnerCustomerID       uuid.UUID              `json:"owner_customer_id"`
	PrimarySubscriptionID uuid.UUID              `json:"primary_subscription_id"`
	SharedDataMB          int64                  `json:"shared_data_mb"`
	MaxMembers            int                    `json:"max_members"`
	Status                enums.FamilyPlanStatus `json:"status"`
	Members               []MemberDTO            `json:"members"`
	CreatedAt             time.Time              `json:"created_at"`
}

func FromModel(m *models.FamilyPlan) *PlanDTO {
	if m == nil {
		return nil
	}
	out := &PlanDTO{
		ID:                    m.ID,
		Name:                  m.Name,
		OwnerCustomerID:       m.OwnerCustomerID,
		PrimarySubscriptionID: m.PrimarySubscriptionID,
		SharedDataMB:          m.SharedDataMB,
		MaxMembers:            m.MaxMembers,
		Status:                m.Status,
		Members:               make([]MemberDTO, 0, len(m.Members)),
		CreatedAt:             m.CreatedAt,
	}
	for _, member := range m.Members {
		out.Members = append(out.Members, MemberDTO{
			ID:             member.ID,
			SubscriptionID: member.SubscriptionID,
			CustomerID:     member.CustomerID,
			Role:           member.Role,
			DataLimitMB:    member.DataLimitMB,
			JoinedAt:       member.JoinedAt,
		})
	}
	return out
}

type CreateInput struct {
	Name                  string    `json:"name" validate:"required,max=80"`
	PrimarySubscriptionID uuid.UUID `json:"primary_subscription_id" validate:"required"`
	SharedDataMB          int64     `json:"shared_data_mb" validate:"gte=0"`
	MaxMembers            int       `json:"max_members" validate:"omitempty,gte=2,lte=10"`
}

type AddMemberInput struct {
	SubscriptionID uuid.UUID `json:"subscription_id" validate:"required"`
	DataLimitMB    *int64    `json:"data_limit_mb,omitempty" validate:"omitempty,gte=0"`
}
