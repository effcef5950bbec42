package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

const (
	defaultOutboxRetention     = 30 * 24 * time.Hour
	defaultDeadLetterRetention = 90 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedOutboxPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Outbox      publishedOutboxPruner
	DeadLetters deadLetterPruner // optional

	Retention           time.Duration
	DeadLetterRetention time.Duration
}

// NewOutboxRetentionJob prunes delivered outbox rows and, when DeadLetters is
// set, dead letters that outlived their own window. Rows still waiting to be
// published are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Outbox == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:         params.Logger,
		db:           params.DB,
		outbox:       params.Outbox,
		deadLetters:  params.DeadLetters,
		retention:    params.Retention,
		dlqRetention: params.DeadLetterRetention,
		now:          time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.dlqRetention <= 0 {
		job.dlqRetention = defaultDeadLetterRetention
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	outbox       publishedOutboxPruner
	deadLetters  deadLetterPruner
	retention    time.Duration
	dlqRetention time.Duration
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return JobOutboxRetention }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	published, dead := now.Add(-j.retention), now.Add(-j.dlqRetention)

	var pruned, prunedDead int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if pruned, err = j.outbox.DeletePublishedBefore(tx, published); err != nil {
			return fmt.Errorf("published events: %w", err)
		}
		if j.deadLetters == nil {
			return nil
		}
		if prunedDead, err = j.deadLetters.DeleteFailedBefore(tx, dead); err != nil {
			return fmt.Errorf("dead letters: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"published_cutoff":     published,
		"published_deleted":    pruned,
		"dead_letter_cutoff":   dead,
		"dead_letters_deleted": prunedDead,
	}), "outbox pruned")
	return nil
}
