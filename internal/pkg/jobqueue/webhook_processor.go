package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lingodesk/lingodesk/internal/pkg/billing"
	"github.com/lingodesk/lingodesk/internal/pkg/database"
)

// EnqueueProcessWebhookJob enqueues a job that applies a stored webhook event
// to the payment ledger.
func (q *Queue) EnqueueProcessWebhookJob(ctx context.Context, webhookEventID uint, provider string) (string, error) {
	payload := ProcessWebhookJobPayload{
		WebhookEventID: webhookEventID,
		Provider:       provider,
	}
	return q.EnqueueJob(ctx, JobTypeProcessWebhook, payload.ToMap())
}

// EnqueuePurgeWebhookEventsJob enqueues a sweep of expired webhook events.
func (q *Queue) EnqueuePurgeWebhookEventsJob(ctx context.Context) (string, error) {
	return q.EnqueueJob(ctx, JobTypePurgeWebhookEvents, map[string]interface{}{})
}

// processWebhookJob parses and applies a single stored webhook event
func (q *Queue) processWebhookJob(ctx context.Context, job *Job) error {
	payload, err := ProcessWebhookJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid webhook job payload: %w", err)
	}
	if payload.WebhookEventID == 0 {
		return fmt.Errorf("webhook job %s has no event ID", job.ID)
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	if err := svc.ProcessEvent(ctx, payload.WebhookEventID); err != nil {
		return fmt.Errorf("process webhook event %d (%s): %w", payload.WebhookEventID, payload.Provider, err)
	}

	log.Debugf("[JobQueue] Processed webhook event %d (%s)", payload.WebhookEventID, payload.Provider)
	return nil
}

// processPurgeWebhookEventsJob deletes webhook events past their retention window
func (q *Queue) processPurgeWebhookEventsJob(ctx context.Context, job *Job) error {
	svc := billing.NewServiceFromDB(database.GetDB())
	deleted, err := svc.PurgeExpiredWebhookEvents(ctx)
	if err != nil {
		return fmt.Errorf("purge webhook events: %w", err)
	}
	if deleted > 0 {
		log.Infof("[JobQueue] Purged %d expired webhook events", deleted)
	}
	return nil
}
