package controllers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/lingodesk/lingodesk/app/models"
	"github.com/lingodesk/lingodesk/internal/pkg/billing"
	"github.com/lingodesk/lingodesk/internal/pkg/database"
	"github.com/lingodesk/lingodesk/internal/pkg/env"
	"github.com/lingodesk/lingodesk/internal/pkg/jobqueue"
)

// HandleSquareWebhook receives Square payment callbacks. Signature is
// verified against the raw body before anything is stored; the actual ledger
// work runs in the background so the provider gets its acknowledgement fast.
func HandleSquareWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	signatureKey := env.GetEnv("SQUARE_WEBHOOK_SIGNATURE_KEY", "")
	notificationURL := env.GetEnv("SQUARE_WEBHOOK_NOTIFICATION_URL", "")
	signature := c.Get("X-Square-HmacSha256-Signature")
	if !billing.VerifySquareWebhookSignature(payload, signature, notificationURL, signatureKey) {
		log.Warnf("[Webhook] Square signature rejected (ip=%s)", GetClientIP(c))
		return jsonError(c, fiber.StatusUnauthorized, "invalid signature")
	}

	var envelope struct {
		EventID string `json:"event_id"`
		Type    string `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid payload")
	}

	return acceptWebhook(c, models.PaymentProviderSquare, envelope.EventID, envelope.Type, payload)
}

// HandleStripeWebhook receives Stripe payment callbacks, same state machine
// as the Square endpoint with Stripe's v1 signature scheme.
func HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")
	signature := c.Get("Stripe-Signature")
	if !billing.VerifyStripeWebhookSignature(payload, signature, secret, time.Now()) {
		log.Warnf("[Webhook] Stripe signature rejected (ip=%s)", GetClientIP(c))
		return jsonError(c, fiber.StatusUnauthorized, "invalid signature")
	}

	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid payload")
	}

	return acceptWebhook(c, models.PaymentProviderStripe, envelope.ID, envelope.Type, payload)
}

// acceptWebhook stores the delivery idempotently, schedules processing for
// fresh events, and acknowledges duplicates without re-processing.
func acceptWebhook(c *fiber.Ctx, provider, providerEventID, eventType string, payload []byte) error {
	svc := billing.NewServiceFromDB(database.GetDB())

	created, stored, err := svc.RecordWebhookEvent(c.Context(), billing.WebhookEventInput{
		Provider:        provider,
		ProviderEventID: providerEventID,
		EventType:       eventType,
		Payload:         string(payload),
		SignatureValid:  true,
	})
	if err != nil {
		log.Errorf("[Webhook] Failed to store %s event: %v", provider, err)
		return jsonError(c, fiber.StatusInternalServerError, "event storage failed")
	}

	// Duplicate delivery of an already processed event: acknowledge, done.
	// An unprocessed duplicate gets re-enqueued; processing itself skips
	// events whose processed flag flipped in the meantime.
	if created || !stored.Processed {
		queue := jobqueue.GetManager().GetQueue()
		if _, err := queue.EnqueueProcessWebhookJob(c.Context(), stored.ID, provider); err != nil {
			log.Errorf("[Webhook] Failed to enqueue %s event %d: %v", provider, stored.ID, err)
			return jsonError(c, fiber.StatusInternalServerError, "event scheduling failed")
		}
	}

	return c.JSON(fiber.Map{
		"received": true,
		"event_id": stored.ProviderEventID,
	})
}
