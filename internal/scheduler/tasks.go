package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// TaskQuoteReminders runs one reminder sweep over sent quotes.
const TaskQuoteReminders = "quotes.reminders.run"

type QuoteRemindersPayload struct {
	// HoursSinceSent overrides the configured age; zero uses the default.
	HoursSinceSent int       `json:"hoursSinceSent,omitempty"`
	RequestedAt    time.Time `json:"requestedAt"`
}

func NewQuoteRemindersTask(payload QuoteRemindersPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteReminders, data), nil
}

func ParseQuoteRemindersPayload(task *asynq.Task) (QuoteRemindersPayload, error) {
	var payload QuoteRemindersPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return QuoteRemindersPayload{}, err
	}
	return payload, nil
}
