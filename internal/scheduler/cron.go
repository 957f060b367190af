package scheduler

import (
	"context"
	"fmt"

	"procurement_backend/platform/config"
	"procurement_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Cron enqueues periodic tasks on their configured schedules.
type Cron struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

// NewCron registers the reminder sweep on REMINDER_CRON. An empty schedule
// leaves the sweep to the HTTP trigger.
func NewCron(cfg config.SchedulerConfig, log *logger.Logger) (*Cron, error) {
	opt, queue, err := connection(cfg)
	if err != nil {
		return nil, err
	}

	c := &Cron{
		scheduler: asynq.NewScheduler(opt, nil),
		log:       log.WithComponent("cron"),
	}

	spec := cfg.GetReminderCron()
	if spec == "" {
		c.log.Warn("REMINDER_CRON not configured; reminder sweeps run only on demand")
		return c, nil
	}

	task, err := NewQuoteRemindersTask(QuoteRemindersPayload{})
	if err != nil {
		return nil, err
	}
	entryID, err := c.scheduler.Register(spec, task, asynq.Queue(queue), asynq.Unique(reminderUniqueness), asynq.MaxRetry(1))
	if err != nil {
		return nil, fmt.Errorf("register reminder cron %q: %w", spec, err)
	}
	c.log.Info("reminder sweep scheduled", "cron", spec, "entry_id", entryID)
	return c, nil
}

// Run blocks until ctx is cancelled.
func (c *Cron) Run(ctx context.Context) {
	if c == nil || c.scheduler == nil {
		return
	}
	if err := c.scheduler.Start(); err != nil {
		c.log.Error("cron scheduler failed to start", "error", err)
		return
	}
	<-ctx.Done()
	c.scheduler.Shutdown()
}
