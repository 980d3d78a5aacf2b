package workflow

import (
	"context"

	"vhxdl/internal/catalog"
	"vhxdl/internal/logging"
	"vhxdl/internal/notifications"
	"vhxdl/internal/services"
)

func (r *Runner) notifyCompleted(ctx context.Context, summary Summary) {
	r.publish(ctx, notifications.EventRunCompleted, notifications.Payload{
		"planned":    summary.Planned,
		"downloaded": summary.Downloaded,
		"skipped":    summary.Skipped,
		"missing":    summary.Missing,
		"duration":   summary.Duration,
	})
}

func (r *Runner) notifyFailed(ctx context.Context, runErr error) {
	trigger, _ := services.TriggerFromContext(ctx)
	r.publish(ctx, notifications.EventRunFailed, notifications.Payload{
		"error":   runErr,
		"trigger": trigger,
	})
}

func (r *Runner) notifyDownloaded(ctx context.Context, job catalog.Job) {
	r.publish(ctx, notifications.EventDownloadCompleted, notifications.Payload{
		"label": job.Label(),
		"path":  job.Path,
	})
}

func (r *Runner) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "notification not delivered"),
		)
	}
}
