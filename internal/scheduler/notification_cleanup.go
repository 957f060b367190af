package scheduler

import (
	"context"
	"time"

	"procurement_backend/platform/logger"
)

const (
	defaultNotificationCleanupInterval = 6 * time.Hour
	defaultReadNotificationRetention   = 90 * 24 * time.Hour
)

// ReadNotificationPruner deletes read in-app notifications. Implemented by
// inapp.Repository.
type ReadNotificationPruner interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationCleanup periodically removes in-app notifications that were
// read longer ago than the retention.
type NotificationCleanup struct {
	repo      ReadNotificationPruner
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewNotificationCleanup(repo ReadNotificationPruner, log *logger.Logger, interval, retention time.Duration) *NotificationCleanup {
	if interval <= 0 {
		interval = defaultNotificationCleanupInterval
	}
	if retention <= 0 {
		retention = defaultReadNotificationRetention
	}

	return &NotificationCleanup{
		repo:      repo,
		log:       log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (c *NotificationCleanup) Run(ctx context.Context) {
	if c == nil || c.repo == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *NotificationCleanup) cleanup(ctx context.Context) {
	deleted, err := c.repo.DeleteReadBefore(ctx, c.now().Add(-c.retention))
	if err != nil {
		c.log.Warn("notification cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		c.log.Info("notification cleanup deleted read notifications", "deleted", deleted)
	}
}
