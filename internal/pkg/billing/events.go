package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lingodesk/lingodesk/app/models"
)

// EventKind is the closed set of provider event variants the processor
// understands. Everything else maps to EventIgnored and is acknowledged
// without side effects.
type EventKind string

const (
	EventPaymentSucceeded EventKind = "payment_succeeded"
	EventPaymentFailed    EventKind = "payment_failed"
	EventRefundIssued     EventKind = "refund_issued"
	EventIgnored          EventKind = "ignored"
)

// Event is the provider-agnostic shape both webhook payload formats parse
// into. Invoice/subscription linkage rides in provider metadata.
type Event struct {
	Provider          string
	Kind              EventKind
	ProviderEventID   string
	ProviderPaymentID string
	ProviderRefundID  string
	Amount            int64
	Currency          string
	CustomerEmail     string
	CardBrand         string
	CardLast4         string
	InvoiceID         string
	SubscriptionID    string
}

type squareEnvelope struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		Object struct {
			Payment struct {
				ID          string `json:"id"`
				Status      string `json:"status"`
				AmountMoney struct {
					Amount   int64  `json:"amount"`
					Currency string `json:"currency"`
				} `json:"amount_money"`
				BuyerEmailAddress string `json:"buyer_email_address"`
				CardDetails       struct {
					Card struct {
						CardBrand string `json:"card_brand"`
						Last4     string `json:"last_4"`
					} `json:"card"`
				} `json:"card_details"`
				Note string `json:"note"`
			} `json:"payment"`
			Refund struct {
				ID          string `json:"id"`
				PaymentID   string `json:"payment_id"`
				Status      string `json:"status"`
				AmountMoney struct {
					Amount   int64  `json:"amount"`
					Currency string `json:"currency"`
				} `json:"amount_money"`
			} `json:"refund"`
		} `json:"object"`
	} `json:"data"`
}

type stripeEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID             string            `json:"id"`
			Amount         int64             `json:"amount"`
			Currency       string            `json:"currency"`
			Status         string            `json:"status"`
			ReceiptEmail   string            `json:"receipt_email"`
			Metadata       map[string]string `json:"metadata"`
			PaymentIntent  string            `json:"payment_intent"`
			AmountRefunded int64             `json:"amount_refunded"`
			Refunds        struct {
				Data []struct {
					ID       string `json:"id"`
					Amount   int64  `json:"amount"`
					Currency string `json:"currency"`
				} `json:"data"`
			} `json:"refunds"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a raw provider payload into the closed variant set.
func ParseEvent(provider string, payload []byte) (*Event, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case models.PaymentProviderSquare:
		return parseSquareEvent(payload)
	case models.PaymentProviderStripe:
		return parseStripeEvent(payload)
	default:
		return nil, fmt.Errorf("unknown payment provider %q", provider)
	}
}

func parseSquareEvent(payload []byte) (*Event, error) {
	var env squareEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("parse square event: %w", err)
	}

	ev := &Event{
		Provider:        models.PaymentProviderSquare,
		Kind:            EventIgnored,
		ProviderEventID: env.EventID,
	}

	switch env.Type {
	case "payment.created", "payment.updated":
		p := env.Data.Object.Payment
		ev.ProviderPaymentID = p.ID
		ev.Amount = p.AmountMoney.Amount
		ev.Currency = p.AmountMoney.Currency
		ev.CustomerEmail = p.BuyerEmailAddress
		ev.CardBrand = p.CardDetails.Card.CardBrand
		ev.CardLast4 = p.CardDetails.Card.Last4
		ev.InvoiceID, ev.SubscriptionID = parseSquareNote(p.Note)
		switch p.Status {
		case "COMPLETED", "APPROVED":
			ev.Kind = EventPaymentSucceeded
		case "FAILED", "CANCELED":
			ev.Kind = EventPaymentFailed
		}
	case "refund.created", "refund.updated":
		r := env.Data.Object.Refund
		if r.Status == "COMPLETED" {
			ev.Kind = EventRefundIssued
			ev.ProviderPaymentID = r.PaymentID
			ev.ProviderRefundID = r.ID
			ev.Amount = r.AmountMoney.Amount
			ev.Currency = r.AmountMoney.Currency
		}
	}
	return ev, nil
}

// parseSquareNote extracts "invoice:<id>" / "subscription:<id>" tokens that
// the checkout flow writes into the payment note.
func parseSquareNote(note string) (invoiceID, subscriptionID string) {
	for _, field := range strings.Fields(note) {
		if v, ok := strings.CutPrefix(field, "invoice:"); ok {
			invoiceID = v
		}
		if v, ok := strings.CutPrefix(field, "subscription:"); ok {
			subscriptionID = v
		}
	}
	return invoiceID, subscriptionID
}

func parseStripeEvent(payload []byte) (*Event, error) {
	var env stripeEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("parse stripe event: %w", err)
	}

	obj := env.Data.Object
	ev := &Event{
		Provider:        models.PaymentProviderStripe,
		Kind:            EventIgnored,
		ProviderEventID: env.ID,
		CustomerEmail:   obj.ReceiptEmail,
		InvoiceID:       obj.Metadata["invoice_id"],
		SubscriptionID:  obj.Metadata["subscription_id"],
	}

	switch env.Type {
	case "payment_intent.succeeded":
		ev.Kind = EventPaymentSucceeded
		ev.ProviderPaymentID = obj.ID
		ev.Amount = obj.Amount
		ev.Currency = obj.Currency
	case "payment_intent.payment_failed":
		ev.Kind = EventPaymentFailed
		ev.ProviderPaymentID = obj.ID
		ev.Amount = obj.Amount
		ev.Currency = obj.Currency
	case "charge.refunded":
		if len(obj.Refunds.Data) > 0 {
			last := obj.Refunds.Data[len(obj.Refunds.Data)-1]
			ev.Kind = EventRefundIssued
			ev.ProviderPaymentID = obj.PaymentIntent
			if ev.ProviderPaymentID == "" {
				ev.ProviderPaymentID = obj.ID
			}
			ev.ProviderRefundID = last.ID
			ev.Amount = last.Amount
			ev.Currency = last.Currency
		}
	}
	return ev, nil
}

// ProcessEvent runs the payment recorder for one stored webhook event and
// marks it processed, recording any failure on the event row instead of
// propagating it to the delivery response.
func (s *Service) ProcessEvent(ctx context.Context, webhookEventID uint) error {
	stored, err := s.repo.GetWebhookEvent(webhookEventID)
	if err != nil {
		return err
	}
	if stored.Processed {
		return nil
	}

	procErr := s.applyEvent(ctx, stored)
	if markErr := s.MarkWebhookProcessed(ctx, stored.ID, procErr); markErr != nil {
		return markErr
	}
	return procErr
}

func (s *Service) applyEvent(ctx context.Context, stored *models.WebhookEvent) error {
	ev, err := ParseEvent(stored.Provider, []byte(stored.Payload))
	if err != nil {
		return err
	}

	switch ev.Kind {
	case EventPaymentSucceeded:
		_, _, err := s.RecordPayment(ctx, RecordPaymentInput{
			Provider:          ev.Provider,
			ProviderPaymentID: ev.ProviderPaymentID,
			Amount:            ev.Amount,
			Currency:          ev.Currency,
			Status:            models.PaymentStatusCompleted,
			ProcessingSource:  models.PaymentSourceWebhook,
			InvoiceID:         ev.InvoiceID,
			SubscriptionID:    ev.SubscriptionID,
			CustomerEmail:     ev.CustomerEmail,
			CardBrand:         ev.CardBrand,
			CardLast4:         ev.CardLast4,
		})
		return err
	case EventPaymentFailed:
		_, _, err := s.RecordPayment(ctx, RecordPaymentInput{
			Provider:          ev.Provider,
			ProviderPaymentID: ev.ProviderPaymentID,
			Amount:            ev.Amount,
			Currency:          ev.Currency,
			Status:            models.PaymentStatusFailed,
			ProcessingSource:  models.PaymentSourceWebhook,
			InvoiceID:         ev.InvoiceID,
			SubscriptionID:    ev.SubscriptionID,
			CustomerEmail:     ev.CustomerEmail,
		})
		return err
	case EventRefundIssued:
		_, _, err := s.RefundPayment(ctx, RefundInput{
			Provider:          ev.Provider,
			ProviderPaymentID: ev.ProviderPaymentID,
			ProviderRefundID:  ev.ProviderRefundID,
			Amount:            ev.Amount,
			Currency:          ev.Currency,
			// Provider refund ids are stable across redeliveries, so they
			// double as the idempotency key on this path.
			IdempotencyKey: ev.ProviderRefundID,
		})
		return err
	default:
		return nil
	}
}
