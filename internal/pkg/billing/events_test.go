package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingodesk/lingodesk/app/models"
)

const squarePaymentPayload = `{
	"event_id": "sq-evt-1",
	"type": "payment.created",
	"data": {
		"object": {
			"payment": {
				"id": "sq-pay-1",
				"status": "COMPLETED",
				"amount_money": {"amount": 10000, "currency": "EUR"},
				"buyer_email_address": "buyer@example.com",
				"card_details": {"card": {"card_brand": "VISA", "last_4": "4242"}},
				"note": "invoice:inv-1 subscription:sub-1"
			}
		}
	}
}`

func TestParseSquarePaymentEvent(t *testing.T) {
	ev, err := ParseEvent("square", []byte(squarePaymentPayload))
	require.NoError(t, err)
	assert.Equal(t, EventPaymentSucceeded, ev.Kind)
	assert.Equal(t, "sq-evt-1", ev.ProviderEventID)
	assert.Equal(t, "sq-pay-1", ev.ProviderPaymentID)
	assert.Equal(t, int64(10000), ev.Amount)
	assert.Equal(t, "EUR", ev.Currency)
	assert.Equal(t, "buyer@example.com", ev.CustomerEmail)
	assert.Equal(t, "VISA", ev.CardBrand)
	assert.Equal(t, "4242", ev.CardLast4)
	assert.Equal(t, "inv-1", ev.InvoiceID)
	assert.Equal(t, "sub-1", ev.SubscriptionID)
}

func TestParseSquareFailedPayment(t *testing.T) {
	payload := `{"event_id":"sq-evt-2","type":"payment.updated","data":{"object":{"payment":{"id":"sq-pay-2","status":"FAILED","amount_money":{"amount":500,"currency":"EUR"}}}}}`
	ev, err := ParseEvent("square", []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, EventPaymentFailed, ev.Kind)
	assert.Equal(t, "sq-pay-2", ev.ProviderPaymentID)
}

func TestParseSquareRefundEvent(t *testing.T) {
	payload := `{"event_id":"sq-evt-3","type":"refund.created","data":{"object":{"refund":{"id":"sq-ref-1","payment_id":"sq-pay-1","status":"COMPLETED","amount_money":{"amount":2500,"currency":"EUR"}}}}}`
	ev, err := ParseEvent("square", []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, EventRefundIssued, ev.Kind)
	assert.Equal(t, "sq-pay-1", ev.ProviderPaymentID)
	assert.Equal(t, "sq-ref-1", ev.ProviderRefundID)
	assert.Equal(t, int64(2500), ev.Amount)

	// A refund that has not completed yet is ignored.
	pending := `{"event_id":"sq-evt-4","type":"refund.updated","data":{"object":{"refund":{"id":"sq-ref-2","payment_id":"sq-pay-1","status":"PENDING","amount_money":{"amount":2500,"currency":"EUR"}}}}}`
	ev, err = ParseEvent("square", []byte(pending))
	require.NoError(t, err)
	assert.Equal(t, EventIgnored, ev.Kind)
}

func TestParseSquareNote(t *testing.T) {
	inv, sub := parseSquareNote("invoice:inv-9 subscription:sub-9")
	assert.Equal(t, "inv-9", inv)
	assert.Equal(t, "sub-9", sub)

	inv, sub = parseSquareNote("thanks for your order invoice:inv-9")
	assert.Equal(t, "inv-9", inv)
	assert.Empty(t, sub)

	inv, sub = parseSquareNote("")
	assert.Empty(t, inv)
	assert.Empty(t, sub)
}

func TestParseStripePaymentIntentSucceeded(t *testing.T) {
	payload := `{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_1",
			"amount": 10000,
			"currency": "eur",
			"receipt_email": "buyer@example.com",
			"metadata": {"invoice_id": "inv-1", "subscription_id": "sub-1"}
		}}
	}`
	ev, err := ParseEvent("stripe", []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, EventPaymentSucceeded, ev.Kind)
	assert.Equal(t, "evt_1", ev.ProviderEventID)
	assert.Equal(t, "pi_1", ev.ProviderPaymentID)
	assert.Equal(t, int64(10000), ev.Amount)
	assert.Equal(t, "inv-1", ev.InvoiceID)
	assert.Equal(t, "sub-1", ev.SubscriptionID)
}

func TestParseStripePaymentFailed(t *testing.T) {
	payload := `{"id":"evt_2","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_2","amount":900,"currency":"usd"}}}`
	ev, err := ParseEvent("stripe", []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, EventPaymentFailed, ev.Kind)
	assert.Equal(t, "pi_2", ev.ProviderPaymentID)
}

func TestParseStripeChargeRefunded(t *testing.T) {
	payload := `{
		"id": "evt_3",
		"type": "charge.refunded",
		"data": {"object": {
			"id": "ch_1",
			"payment_intent": "pi_1",
			"amount_refunded": 2500,
			"refunds": {"data": [{"id": "re_1", "amount": 2500, "currency": "eur"}]}
		}}
	}`
	ev, err := ParseEvent("stripe", []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, EventRefundIssued, ev.Kind)
	assert.Equal(t, "pi_1", ev.ProviderPaymentID)
	assert.Equal(t, "re_1", ev.ProviderRefundID)
	assert.Equal(t, int64(2500), ev.Amount)
}

func TestParseEventIgnoredAndErrors(t *testing.T) {
	ev, err := ParseEvent("square", []byte(`{"event_id":"x","type":"dispute.created"}`))
	require.NoError(t, err)
	assert.Equal(t, EventIgnored, ev.Kind)

	ev, err = ParseEvent("stripe", []byte(`{"id":"x","type":"customer.created"}`))
	require.NoError(t, err)
	assert.Equal(t, EventIgnored, ev.Kind)

	_, err = ParseEvent("paypal", []byte(`{}`))
	assert.Error(t, err)

	_, err = ParseEvent("square", []byte(`not json`))
	assert.Error(t, err)
}

func storeEvent(t *testing.T, repo *fakeRepository, provider, eventID, payload string) *models.WebhookEvent {
	t.Helper()
	_, stored, err := repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		Payload:         payload,
		SignatureValid:  true,
		ExpiresAt:       time.Now().Add(models.WebhookEventTTL),
	})
	require.NoError(t, err)
	return stored
}

func TestProcessEventRecordsPayment(t *testing.T) {
	svc, repo := newTestService()
	stored := storeEvent(t, repo, "square", "sq-evt-1", squarePaymentPayload)

	// The note references an invoice that does not exist here; use one that does.
	inv := seedInvoice(t, repo, nil, 10000)
	payload := fmt.Sprintf(`{"event_id":"sq-evt-5","type":"payment.created","data":{"object":{"payment":{"id":"sq-pay-5","status":"COMPLETED","amount_money":{"amount":10000,"currency":"EUR"},"note":"invoice:%s"}}}}`, inv.ID)
	linked := storeEvent(t, repo, "square", "sq-evt-5", payload)

	require.NoError(t, svc.ProcessEvent(context.Background(), linked.ID))

	payment, err := repo.GetPaymentByProviderID("square", "sq-pay-5")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)

	got, err := repo.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, got.Status)

	ev, err := repo.GetWebhookEvent(linked.ID)
	require.NoError(t, err)
	assert.True(t, ev.Processed)
	assert.Empty(t, ev.Error)

	// The event with the dangling invoice note fails and records the error.
	err = svc.ProcessEvent(context.Background(), stored.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	ev, err = repo.GetWebhookEvent(stored.ID)
	require.NoError(t, err)
	assert.True(t, ev.Processed)
	assert.NotEmpty(t, ev.Error)
}

func TestProcessEventSkipsProcessed(t *testing.T) {
	svc, repo := newTestService()
	payload := `{"event_id":"sq-evt-6","type":"payment.created","data":{"object":{"payment":{"id":"sq-pay-6","status":"COMPLETED","amount_money":{"amount":500,"currency":"EUR"}}}}}`
	stored := storeEvent(t, repo, "square", "sq-evt-6", payload)
	require.NoError(t, repo.MarkWebhookProcessed(stored.ID, ""))

	require.NoError(t, svc.ProcessEvent(context.Background(), stored.ID))

	// Nothing was recorded: the redelivery short-circuits on the marker.
	_, err := repo.GetPaymentByProviderID("square", "sq-pay-6")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessEventRefundPath(t *testing.T) {
	svc, repo := newTestService()
	seedPayment(t, svc, "sq-pay-7", 10000)

	payload := `{"event_id":"sq-evt-7","type":"refund.created","data":{"object":{"refund":{"id":"sq-ref-7","payment_id":"sq-pay-7","status":"COMPLETED","amount_money":{"amount":4000,"currency":"EUR"}}}}}`
	stored := storeEvent(t, repo, "square", "sq-evt-7", payload)

	require.NoError(t, svc.ProcessEvent(context.Background(), stored.ID))

	payment, err := repo.GetPaymentByProviderID("square", "sq-pay-7")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, payment.Status)
	assert.Equal(t, int64(6000), payment.RemainingRefundable())

	// Redelivery under a fresh event id: the provider refund id doubles as
	// the idempotency key, so the refund applies once.
	redelivered := storeEvent(t, repo, "square", "sq-evt-8", payload)
	require.NoError(t, svc.ProcessEvent(context.Background(), redelivered.ID))

	payment, err = repo.GetPaymentByProviderID("square", "sq-pay-7")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), payment.RemainingRefundable())
}

func TestProcessEventIgnoredKind(t *testing.T) {
	svc, repo := newTestService()
	stored := storeEvent(t, repo, "square", "sq-evt-9", `{"event_id":"sq-evt-9","type":"dispute.created"}`)

	require.NoError(t, svc.ProcessEvent(context.Background(), stored.ID))

	ev, err := repo.GetWebhookEvent(stored.ID)
	require.NoError(t, err)
	assert.True(t, ev.Processed)
	assert.Empty(t, ev.Error)
}

func TestProcessEventUnknownID(t *testing.T) {
	svc, _ := newTestService()
	err := svc.ProcessEvent(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}
