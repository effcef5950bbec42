package roaming

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
)

type PackageDTO struct {
	ID           uuid.UUID `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Countries    []string  `json:"countries"`
	PriceMinor   int64     `json:"price_minor"`
	DataMB       int64     `json:"data_mb"`
	VoiceMinutes int64     `json:"voice_minutes"`
	ValidityDays int       `json:"validity_days"`
	Active       bool      `json:"active"`
}

func PackageFromModel(m *models.RoamingPackage) *PackageDTO {
	if m == nil {
		return nil
	}
	return &PackageDTO{
		ID:           m.ID,
		Code:         m.Code,
		Name:         m.Name,
		Countries:    m.Countries,
		PriceMinor:   m.PriceMinor,
		DataMB:       m.DataMB,
		VoiceMinutes: m.VoiceMinutes,
		ValidityDays: m.ValidityDays,
		Active:       m.Active,
	}
}

type ActivationDTO struct {
	ID              uuid.UUID  `json:"id"`
	SubscriptionID  uuid.UUID  `json:"subscription_id"`
	PackageID       uuid.UUID  `json:"package_id"`
	InvoiceID       *uuid.UUID `json:"invoice_id,omitempty"`
	Country         string     `json:"country"`
	DataRemainingMB int64      `json:"data_remaining_mb"`
	StartsAt        time.Time  `json:"starts_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
}

func ActivationFromModel(m *models.RoamingActivation) *ActivationDTO {
	if m == nil {
		return nil
	}
	return &ActivationDTO{
		ID:              m.ID,
		SubscriptionID:  m.SubscriptionID,
		PackageID:       m.PackageID,
		InvoiceID:       m.InvoiceID,
		Country:         m.Country,
		DataRemainingMB: m.DataRemainingMB,
		StartsAt:        m.StartsAt,
		ExpiresAt:       m.ExpiresAt,
	}
}

type PackageInput struct {
	Code         string   `json:"code" validate:"required,max=40"`
	Name         string   `json:"name" validate:"required,max=120"`
	Countries    []string `json:"countries" validate:"required,min=1,dive,alpha2_country"`
	PriceMinor   int64    `json:"price_minor" validate:"gt=0"`
	DataMB       int64    `json:"data_mb" validate:"gte=0"`
	VoiceMinutes int64    `json:"voice_minutes" validate:"gte=0"`
	ValidityDays int      `json:"validity_days" validate:"gte=1,lte=90"`
}

type PackageUpdate struct {
	Name       *string  `json:"name,omitempty"`
	Countries  []string `json:"countries,omitempty" validate:"omitempty,dive,alpha2_country"`
	PriceMinor *int64   `json:"price_minor,omitempty" validate:"omitempty,gt=0"`
	Active     *bool    `json:"active,omitempty"`
}

type ActivateInput struct {
	PackageID uuid.UUID `json:"package_id" validate:"required"`
	Country   string    `json:"country" validate:"required,alpha2_country"`
}

type ActivationResult struct {
	Activation *ActivationDTO       `json:"activation"`
	Invoice    *invoices.InvoiceDTO `json:"invoice"`
	Payment    *payments.AttemptDTO `json:"payment,omitempty"`
}
