package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"procurement_backend/internal/quotes/transport"
	"procurement_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type stubRunner struct {
	calls []int
	err   error
}

func (s *stubRunner) SendReminders(_ context.Context, hours int) (*transport.ReminderResponse, error) {
	s.calls = append(s.calls, hours)
	if s.err != nil {
		return nil, s.err
	}
	return &transport.ReminderResponse{RemindersSent: 2, Skipped: 1}, nil
}

func TestQuoteRemindersTaskCarriesOverride(t *testing.T) {
	task, err := NewQuoteRemindersTask(QuoteRemindersPayload{HoursSinceSent: 24})
	if err != nil {
		t.Fatalf("NewQuoteRemindersTask: %v", err)
	}
	if task.Type() != TaskQuoteReminders {
		t.Fatalf("unexpected task type %q", task.Type())
	}

	payload, err := ParseQuoteRemindersPayload(task)
	if err != nil {
		t.Fatalf("ParseQuoteRemindersPayload: %v", err)
	}
	if payload.HoursSinceSent != 24 {
		t.Fatalf("expected 24 hours, got %d", payload.HoursSinceSent)
	}
}

func TestEmptyPayloadUsesDefaults(t *testing.T) {
	payload, err := ParseQuoteRemindersPayload(asynq.NewTask(TaskQuoteReminders, nil))
	if err != nil {
		t.Fatalf("ParseQuoteRemindersPayload: %v", err)
	}
	if payload.HoursSinceSent != 0 {
		t.Fatalf("expected default age, got %d", payload.HoursSinceSent)
	}
}

func TestWorkerRunsReminderSweep(t *testing.T) {
	runner := &stubRunner{}
	w := &Worker{reminders: runner, log: logger.Discard()}
	mux := w.routes()

	task, err := NewQuoteRemindersTask(QuoteRemindersPayload{HoursSinceSent: 72})
	if err != nil {
		t.Fatalf("NewQuoteRemindersTask: %v", err)
	}
	if err := mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(runner.calls) != 1 || runner.calls[0] != 72 {
		t.Fatalf("expected one sweep with 72 hours, got %v", runner.calls)
	}
}

func TestWorkerReturnsSweepErrors(t *testing.T) {
	runner := &stubRunner{err: errors.New("db down")}
	w := &Worker{reminders: runner, log: logger.Discard()}

	err := w.routes().ProcessTask(context.Background(), asynq.NewTask(TaskQuoteReminders, nil))
	if err == nil {
		t.Fatal("expected the sweep error so asynq retries")
	}
}

type stubPruner struct {
	cutoff  time.Time
	deleted int64
}

func (s *stubPruner) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.deleted, nil
}

func TestNotificationCleanupUsesRetention(t *testing.T) {
	pruner := &stubPruner{deleted: 3}
	c := NewNotificationCleanup(pruner, logger.Discard(), 0, 48*time.Hour)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.cleanup(context.Background())

	if want := now.Add(-48 * time.Hour); !pruner.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, pruner.cutoff)
	}
	if c.interval != defaultNotificationCleanupInterval {
		t.Fatalf("expected default interval, got %v", c.interval)
	}
}

func TestRedisClientOptInsecureTLS(t *testing.T) {
	opt, err := redisClientOpt("rediss://:secret@cache.internal:6380/2", true)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.Addr != "cache.internal:6380" || opt.DB != 2 || opt.Password != "secret" {
		t.Fatalf("unexpected options %+v", opt)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatal("expected insecure TLS config")
	}
}
