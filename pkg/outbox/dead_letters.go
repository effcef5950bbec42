package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DeadLetters lets operators inspect events the publisher gave up on and push
// them back into the outbox once the cause is fixed.
type DeadLetters interface {
	List(ctx context.Context, filter DeadLetterFilter, page pagination.Params) (*DeadLetterPage, error)
	Replay(ctx context.Context, eventID uuid.UUID) (*DeadLetter, error)
}

type DeadLetter struct {
	EventID       uuid.UUID                  `json:"event_id"`
	EventType     enums.OutboxEventType      `json:"event_type"`
	AggregateType enums.OutboxAggregateType  `json:"aggregate_type"`
	AggregateID   uuid.UUID                  `json:"aggregate_id"`
	Reason        enums.OutboxDLQErrorReason `json:"reason"`
	Error         string                     `json:"error,omitempty"`
	AttemptCount  int                        `json:"attempt_count"`
	FailedAt      time.Time                  `json:"failed_at"`
}

type DeadLetterPage struct {
	Items []DeadLetter `json:"items"`
	Total int64        `json:"total"`
}

type DeadLetterService struct {
	tx   txRunner
	repo *Repository
	dlq  *DLQRepository
	logg *logger.Logger
}

func NewDeadLetterService(tx txRunner, repo *Repository, dlq *DLQRepository, logg *logger.Logger) (*DeadLetterService, error) {
	if tx == nil || repo == nil || dlq == nil {
		return nil, errors.New("dead letter service requires a transaction runner and both repositories")
	}
	return &DeadLetterService{tx: tx, repo: repo, dlq: dlq, logg: logg}, nil
}

func (s *DeadLetterService) List(ctx context.Context, filter DeadLetterFilter, page pagination.Params) (*DeadLetterPage, error) {
	rows, total, err := s.dlq.List(ctx, filter, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list dead letters")
	}
	out := &DeadLetterPage{Items: make([]DeadLetter, 0, len(rows)), Total: total}
	for _, row := range rows {
		out.Items = append(out.Items, toDeadLetter(row))
	}
	return out, nil
}

// Replay requeues the original outbox row with a fresh attempt budget and drops the
// dead letter. The envelope keeps its event id so consumer dedupe still applies.
func (s *DeadLetterService) Replay(ctx context.Context, eventID uuid.UUID) (*DeadLetter, error) {
	var replayed DeadLetter
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := s.dlq.LockByEventIDTx(tx, eventID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
			}
			return err
		}
		event := row.Requeued()
		if err := s.repo.RequeueTx(tx, event); err != nil {
			return err
		}
		if err := s.dlq.DeleteTx(tx, row.ID); err != nil {
			return err
		}
		replayed = toDeadLetter(*row)
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replay dead letter")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":     replayed.EventID.String(),
			"event_type":   replayed.EventType,
			"error_reason": replayed.Reason,
		}), "dead letter requeued")
	}
	return &replayed, nil
}

func toDeadLetter(row models.OutboxDLQ) DeadLetter {
	out := DeadLetter{
		EventID:       row.EventID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Reason:        row.ErrorReason,
		AttemptCount:  row.AttemptCount,
		FailedAt:      row.FailedAt,
	}
	if row.ErrorMessage != nil {
		out.Error = *row.ErrorMessage
	}
	return out
}
