package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

const (
	defaultNotificationRetention = 90 * 24 * time.Hour
	defaultNotificationBatch     = 1000
)

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository readNotificationPurger
	Retention  time.Duration
	BatchSize  int
}

type readNotificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// NewNotificationCleanupJob purges read notifications past the retention
// window. Zero retention or batch size use the defaults.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("notifications repository required")
	}
	job := &notificationCleanupJob{
		logg:      params.Logger,
		purger:    params.Repository,
		retention: params.Retention,
		batch:     params.BatchSize,
		now:       time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultNotificationRetention
	}
	if job.batch <= 0 {
		job.batch = defaultNotificationBatch
	}
	return job, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	purger    readNotificationPurger
	retention time.Duration
	batch     int
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return JobNotificationPurge }

// Run deletes batch by batch until a short batch shows nothing is left, so
// one run never holds a long lock on the notifications table.
func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	batches := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.purger.DeleteReadBefore(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("purge read notifications (after %d rows): %w", total, err)
		}
		total += n
		batches++
		if n < int64(j.batch) {
			break
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": total,
		"batches":      batches,
	}), "read notifications purged")
	return nil
}
