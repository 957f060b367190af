package scheduler

import (
	"context"

	"procurement_backend/internal/quotes/transport"
	"procurement_backend/platform/config"
	"procurement_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// ReminderRunner runs a reminder sweep. Implemented by the quotes service.
type ReminderRunner interface {
	SendReminders(ctx context.Context, hoursSinceSent int) (*transport.ReminderResponse, error)
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	reminders ReminderRunner
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, reminders ReminderRunner, log *logger.Logger) (*Worker, error) {
	opt, queue, err := connection(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{
		server:    server,
		reminders: reminders,
		log:       log.WithComponent("scheduler"),
	}
	w.mux = w.routes()
	return w, nil
}

func (w *Worker) routes() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskQuoteReminders, w.handleQuoteReminders)
	return mux
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleQuoteReminders(ctx context.Context, task *asynq.Task) error {
	if w.reminders == nil {
		return nil
	}

	payload, err := ParseQuoteRemindersPayload(task)
	if err != nil {
		return err
	}

	result, err := w.reminders.SendReminders(ctx, payload.HoursSinceSent)
	if err != nil {
		return err
	}

	w.log.InfoContext(ctx, "reminder sweep finished",
		"sent", result.RemindersSent,
		"skipped", result.Skipped,
		"attempted", len(result.Results),
	)
	return nil
}
