package billing

import "time"

// RecordPaymentInput is the normalized input for the payment recorder, shared
// by the webhook path and the client-fallback path.
type RecordPaymentInput struct {
	Provider          string
	ProviderPaymentID string
	Amount            int64
	Currency          string
	Status            string // defaults to completed
	ProcessingSource  string
	InvoiceID         string
	SubscriptionID    string
	CompanyName       string
	CustomerEmail     string
	CardBrand         string
	CardLast4         string
	PaymentDate       time.Time
	// Strict makes a duplicate provider payment id an ErrDuplicate instead
	// of an idempotent success.
	Strict bool
}

// RefundInput is the normalized input for the refund processor.
type RefundInput struct {
	Provider          string
	ProviderPaymentID string
	ProviderRefundID  string
	Amount            int64
	Currency          string
	IdempotencyKey    string
}

// ClientNotificationInput is what the browser reports on the fallback path.
type ClientNotificationInput struct {
	Provider          string
	ProviderPaymentID string
	Amount            int64
	Currency          string
	CustomerEmail     string
	Status            string // succeeded or failed, as reported by the client
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         string
	SignatureValid  bool
}
