package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
)

// DeadLetterFilter narrows the dead-letter listing. Zero values match everything.
type DeadLetterFilter struct {
	Reason    *enums.OutboxDLQErrorReason
	EventType *enums.OutboxEventType
}

// DLQRepository stores events the publisher stopped retrying.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx records a dead-lettered event. The message is clipped to the same
// bound the outbox applies to last_error.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := clip(*entry.ErrorMessage, maxLastErrorLen)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// List returns dead letters newest first along with the unpaged total.
func (r *DLQRepository) List(ctx context.Context, filter DeadLetterFilter, page pagination.Params) ([]models.OutboxDLQ, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if filter.Reason != nil {
		query = query.Where("error_reason = ?", *filter.Reason)
	}
	if filter.EventType != nil {
		query = query.Where("event_type = ?", *filter.EventType)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.OutboxDLQ
	err := page.Apply(query.Order("failed_at DESC").Order("id DESC")).Find(&rows).Error
	return rows, total, err
}

// LockByEventIDTx loads the dead letter for eventID, holding a row lock on Postgres.
// It returns gorm.ErrRecordNotFound when the event is not dead-lettered.
func (r *DLQRepository) LockByEventIDTx(tx *gorm.DB, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	query := tx.Where("event_id = ?", eventID)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row models.OutboxDLQ
	if err := query.First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *DLQRepository) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Where("id = ?", id).Delete(&models.OutboxDLQ{}).Error
}

// DeleteFailedBefore drops dead letters nobody replayed before cutoff.
func (r *DLQRepository) DeleteFailedBefore(tx *gorm.DB, cutoff time.Time) (int64, error) {
	res := tx.Where("failed_at < ?", cutoff).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}

func clip(message string, limit int) string {
	if len(message) <= limit {
		return message
	}
	return message[:limit]
}
