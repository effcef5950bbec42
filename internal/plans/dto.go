package plans

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

type PlanDTO struct {
	ID                uuid.UUID      `json:"id"`
	Code              string         `json:"code"`
	Name              string         `json:"name"`
	Description       string         `json:"description,omitempty"`
	PlanType          enums.PlanType `json:"plan_type"`
	PriceMinor        int64          `json:"price_minor"`
	DataQuotaMB       int64          `json:"data_quota_mb"`
	VoiceQuotaMinutes int64          `json:"voice_quota_minutes"`
	SMSQuota          int64          `json:"sms_quota"`
	ValidityDays      int            `json:"validity_days"`
	Active            bool           `json:"active"`
}

func FromModel(m *models.PlanConfiguration) *PlanDTO {
	if m == nil {
		return nil
	}
	return &PlanDTO{
		ID:                m.ID,
		Code:              m.Code,
		Name:              m.Name,
		Description:       m.Description,
		PlanType:          m.PlanType,
		PriceMinor:        m.PriceMinor,
		DataQuotaMB:       m.DataQuotaMB,
		VoiceQuotaMinutes: m.VoiceQuotaMinutes,
		SMSQuota:          m.SMSQuota,
		ValidityDays:      m.ValidityDays,
		Active:            m.Active,
	}
}

// CreateInput is the admin payload for a new plan.
type CreateInput struct {
	Code              string         `json:"code" validate:"required,max=64"`
	Name              string         `json:"name" validate:"required"`
	Description       string         `json:"description"`
	PlanType          enums.PlanType `json:"plan_type" validate:"required"`
	PriceMinor        int64          `json:"price_minor" validate:"gte=0"`
	DataQuotaMB       int64          `json:"data_quota_mb" validate:"gte=0"`
	VoiceQuotaMinutes int64          `json:"voice_quota_minutes" validate:"gte=0"`
	SMSQuota          int64          `json:"sms_quota" validate:"gte=0"`
	ValidityDays      int            `json:"validity_days" validate:"gt=0"`
}

// UpdateInput only touches the fields that are set.
type UpdateInput struct {
	Name              *string `json:"name,omitempty"`
	Description       *string `json:"description,omitempty"`
	PriceMinor        *int64  `json:"price_minor,omitempty" validate:"omitempty,gte=0"`
	DataQuotaMB       *int64  `json:"data_quota_mb,omitempty" validate:"omitempty,gte=0"`
	VoiceQuotaMinutes *int64  `json:"voice_quota_minutes,omitempty" validate:"omitempty,gte=0"`
	SMSQuota          *int64  `json:"sms_quota,omitempty" validate:"omitempty,gte=0"`
	ValidityDays      *int    `json:"validity_days,omitempty" validate:"omitempty,gt=0"`
	Active            *bool   `json:"active,omitempty"`
}
