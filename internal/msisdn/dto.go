package msisdn

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// NumberDTO is the public view of an inventory row. Reservation holders are only exposed
// to admins through AdminNumberDTO.
type NumberDTO struct {
	ID                   uuid.UUID          `json:"id"`
	PhoneNumber          string             `json:"phone_number"`
	Status               enums.MsisdnStatus `json:"status"`
	Tier                 enums.MsisdnTier   `json:"tier"`
	Region               string             `json:"region"`
	SurchargeMinor       int64              `json:"surcharge_minor"`
	ReservationExpiresAt *time.Time         `json:"reservation_expires_at,omitempty"`
}

type AdminNumberDTO struct {
	NumberDTO
	CustomerID   *uuid.UUID `json:"customer_id,omitempty"`
	ReservedBy   *uuid.UUID `json:"reserved_by,omitempty"`
	CoolingUntil *time.Time `json:"cooling_until,omitempty"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func FromModel(m *models.MsisdnInventory) *NumberDTO {
	if m == nil {
		return nil
	}
	return &NumberDTO{
		ID:                   m.ID,
		PhoneNumber:          m.PhoneNumber,
		Status:               m.Status,
		Tier:                 m.Tier,
		Region:               m.Region,
		SurchargeMinor:       TierSurcharge(m.Tier),
		ReservationExpiresAt: m.ReservationExpiresAt,
	}
}

func AdminFromModel(m *models.MsisdnInventory) *AdminNumberDTO {
	if m == nil {
		return nil
	}
	return &AdminNumberDTO{
		NumberDTO:    *FromModel(m),
		CustomerID:   m.CustomerID,
		ReservedBy:   m.ReservedBy,
		CoolingUntil: m.CoolingUntil,
		ActivatedAt:  m.ActivatedAt,
		CreatedAt:    m.CreatedAt,
	}
}

type CreateInput struct {
	PhoneNumber string           `json:"phone_number" csv:"phone_number" validate:"required,e164"`
	Tier        enums.MsisdnTier `json:"tier" csv:"tier"`
	Region      string           `json:"region" csv:"region" validate:"required"`
}

type BulkImportResult struct {
	Created  int      `json:"created"`
	Skipped  int      `json:"skipped"`
	Rejected []string `json:"rejected,omitempty"`
}

type UpdateInput struct {
	Tier   *enums.MsisdnTier `json:"tier,omitempty"`
	Region *string           `json:"region,omitempty"`
}
