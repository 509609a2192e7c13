package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/visadesk/visadesk/internal/jobs"
	"github.com/visadesk/visadesk/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotificationDispatch fans one application event out to its recipients.
	TaskNotificationDispatch = "notification:dispatch"
)

// NotificationDispatchPayload describes one event and who should receive it.
type NotificationDispatchPayload struct {
	Recipients []string     `json:"recipients"`
	Event      notify.Event `json:"event"`
}

// NewNotificationDispatchTask constructs an Asynq task.
func NewNotificationDispatchTask(payload NotificationDispatchPayload) (*asynq.Task, error) {
	if err := payload.Event.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDispatch, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// Publisher delivers an event to connected principals.
type Publisher interface {
	Publish(ctx context.Context, recipients []string, ev notify.Event) error
}

// NewNotificationDispatchHandler processes TaskNotificationDispatch tasks by
// publishing through publisher. Malformed payloads are never retried.
func NewNotificationDispatchHandler(publisher Publisher, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload NotificationDispatchPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Warn("jobs decode dispatch payload", slog.Any("error", err))
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
		if err := payload.Event.Validate(); err != nil {
			logger.Warn("jobs invalid dispatch event", slog.Any("error", err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		tracker := metrics.Track(TaskNotificationDispatch)
		err := tracker.End(publisher.Publish(ctx, payload.Recipients, payload.Event))
		if err != nil {
			logger.Error("jobs dispatch notification", slog.String("event", payload.Event.ID), slog.Any("error", err))
			return err
		}
		metrics.AddDelivered(string(payload.Event.Kind), len(notify.Recipients(payload.Recipients...)))
		return nil
	}
}

// IsSkipRetry reports whether err tells asynq to drop the task.
func IsSkipRetry(err error) bool {
	return errors.Is(err, asynq.SkipRetry)
}
