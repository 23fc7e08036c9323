// Package webhook implements best-effort outbound notifications for import
// lifecycle events. Construction and delivery are split: the notifier only
// packages an event into a queue work unit, and the sender delivers it from
// the consumer side. Nothing in this package ever mutates job state.
package webhook

import (
	"context"
	"log/slog"

	"github.com/csvflow/csvflow/internal/core"
)

type notifier struct {
	dispatcher core.Dispatcher
	logger     *slog.Logger
}

// NewNotifier creates a core.Notifier that rides the shared queue
// dispatcher, so delivery is retried and scheduled by the same mechanism as
// row processing and never runs on the caller's request thread.
func NewNotifier(dispatcher core.Dispatcher, logger *slog.Logger) core.Notifier {
	return &notifier{dispatcher: dispatcher, logger: logger}
}

// Notify enqueues a delivery work unit for the given event and returns the
// submission id.
func (n *notifier) Notify(ctx context.Context, jobID string, event core.WebhookEventType, payload map[string]any) (string, error) {
	args := map[string]any{
		"import_job_id": jobID,
		"event_type":    string(event),
		"payload":       payload,
	}

	id, err := n.dispatcher.Enqueue(ctx, core.WorkWebhookSend, args)
	if err != nil {
		return "", err
	}

	n.logger.Info("queued webhook event", "job_id", jobID, "event", event, "submission_id", id)
	return id, nil
}
