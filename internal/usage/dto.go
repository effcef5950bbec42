package usage

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
)

// RecordInput is one usage report from the network side.
type RecordInput struct {
	DataMB       int64 `json:"data_mb" validate:"gte=0"`
	VoiceMinutes int64 `json:"voice_minutes" validate:"gte=0"`
	SMS          int64 `json:"sms" validate:"gte=0"`
}

type CounterDTO struct {
	Month            int   `json:"month"`
	Year             int   `json:"year"`
	DataUsedMB       int64 `json:"data_used_mb"`
	VoiceUsedMinutes int64 `json:"voice_used_minutes"`
	SMSUsed          int64 `json:"sms_used"`
}

// UsageDTO pairs the current month counter with the remaining balances.
type UsageDTO struct {
	SubscriptionID      uuid.UUID    `json:"subscription_id"`
	Current             CounterDTO   `json:"current"`
	DataBalanceMB       int64        `json:"data_balance_mb"`
	VoiceBalanceMinutes int64        `json:"voice_balance_minutes"`
	SMSBalance          int64        `json:"sms_balance"`
	History             []CounterDTO `json:"history,omitempty"`
}

// ExportRow is one CSV/JSON line of a usage export.
type ExportRow struct {
	PhoneNumber      string    `csv:"phone_number" json:"phone_number"`
	Period           string    `csv:"period" json:"period"`
	DataUsedMB       int64     `csv:"data_used_mb" json:"data_used_mb"`
	VoiceUsedMinutes int64     `csv:"voice_used_minutes" json:"voice_used_minutes"`
	SMSUsed          int64     `csv:"sms_used" json:"sms_used"`
	UpdatedAt        time.Time `csv:"updated_at" json:"updated_at"`
}

func counterFromModel(m *models.UsageCounter) CounterDTO {
	return CounterDTO{
		Month:            m.Month,
		Year:             m.Year,
		DataUsedMB:       m.DataUsedMB,
		VoiceUsedMinutes: m.VoiceUsedMinutes,
		SMSUsed:          m.SMSUsed,
	}
}
