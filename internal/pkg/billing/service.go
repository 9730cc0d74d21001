package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lingodesk/lingodesk/app/models"
	"gorm.io/gorm"
)

// Service provides idempotent payment recording and webhook bookkeeping for
// both delivery paths (provider webhook and client fallback).
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// AlreadyProcessed reports whether a provider event id has been seen and
// fully processed. This is the event-level idempotency check, independent of
// payment-level idempotency.
func (s *Service) AlreadyProcessed(ctx context.Context, provider, providerEventID string) (bool, error) {
	_ = ctx
	ev, err := s.repo.GetWebhookEventByProviderID(strings.ToLower(strings.TrimSpace(provider)), strings.TrimSpace(providerEventID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return ev.Processed, nil
}

// AlreadyRecorded returns the stored payment for a provider payment id, or
// nil when none exists yet.
func (s *Service) AlreadyRecorded(ctx context.Context, provider, providerPaymentID string) (*models.Payment, error) {
	_ = ctx
	p, err := s.repo.GetPaymentByProviderID(strings.ToLower(strings.TrimSpace(provider)), strings.TrimSpace(providerPaymentID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// RecordPayment validates and persists a payment. The unique insert on the
// provider payment id makes it safe under concurrent invocation: exactly one
// caller creates the row, everyone else gets the stored payment back with
// alreadyProcessed=true and no side effects are re-applied.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (*models.Payment, bool, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	providerPaymentID := strings.TrimSpace(in.ProviderPaymentID)
	if provider == "" || providerPaymentID == "" {
		return nil, false, errors.New("provider and provider_payment_id are required")
	}
	if in.Amount <= 0 {
		return nil, false, fmt.Errorf("%w: amount must be a positive number of minor units, got %d", ErrInvalidAmount, in.Amount)
	}

	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = models.PaymentStatusCompleted
	}
	source := in.ProcessingSource
	if source == "" {
		source = models.PaymentSourceWebhook
	}

	payment := &models.Payment{
		Provider:          provider,
		ProviderPaymentID: providerPaymentID,
		Amount:            in.Amount,
		Currency:          strings.ToUpper(strings.TrimSpace(in.Currency)),
		Status:            status,
		ProcessingSource:  source,
		CompanyName:       strings.TrimSpace(in.CompanyName),
		CustomerEmail:     strings.TrimSpace(in.CustomerEmail),
		CardBrand:         in.CardBrand,
		CardLast4:         in.CardLast4,
		PaymentDate:       in.PaymentDate,
	}

	// Linkage checks happen before the insert so a bad reference never
	// creates a payment row.
	if id := strings.TrimSpace(in.InvoiceID); id != "" {
		invoice, err := s.repo.GetInvoice(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, false, fmt.Errorf("%w: invoice %s", ErrNotFound, id)
			}
			return nil, false, err
		}
		payment.InvoiceID = &invoice.ID
		if payment.CompanyName == "" {
			payment.CompanyName = invoice.CompanyName
		}

		if subID := strings.TrimSpace(in.SubscriptionID); subID != "" {
			if invoice.SubscriptionID == nil || *invoice.SubscriptionID != subID {
				return nil, false, fmt.Errorf("%w: invoice %s does not belong to subscription %s", ErrMismatch, id, subID)
			}
			payment.SubscriptionID = &subID
		}
	} else if subID := strings.TrimSpace(in.SubscriptionID); subID != "" {
		sub, err := s.repo.GetSubscription(subID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, false, fmt.Errorf("%w: subscription %s", ErrNotFound, subID)
			}
			return nil, false, err
		}
		payment.SubscriptionID = &sub.ID
		if payment.CompanyName == "" {
			payment.CompanyName = sub.CompanyName
		}
	}

	created, stored, err := s.repo.CreatePaymentIfNotExists(payment)
	if err != nil {
		return nil, false, err
	}
	if !created {
		// Some other writer won the race, or this is a replay. Either way
		// the stored payment is the answer; no side effects run twice.
		if in.Strict {
			return stored, true, fmt.Errorf("%w: payment %s/%s", ErrDuplicate, provider, providerPaymentID)
		}
		return stored, true, nil
	}

	// Pending rows are booked when they complete; failed ones never are.
	if stored.Status == models.PaymentStatusCompleted {
		if err := s.recordTransaction(stored, models.TransactionTypePayment, stored.Amount); err != nil {
			return stored, false, err
		}
	}
	if stored.InvoiceID != nil {
		if err := s.ReconcileInvoice(ctx, *stored.InvoiceID); err != nil {
			return stored, false, err
		}
	}
	return stored, false, nil
}

// HandleClientNotification is the fallback path for browser-reported payment
// outcomes. It is a pure function of stored state: the processing_source
// marker decides whether the webhook already won, and the unique insert
// decides any remaining race.
func (s *Service) HandleClientNotification(ctx context.Context, in ClientNotificationInput) (*models.Payment, bool, error) {
	existing, err := s.AlreadyRecorded(ctx, in.Provider, in.ProviderPaymentID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.ProcessingSource == models.PaymentSourceWebhook && existing.Status != models.PaymentStatusPending {
			// Webhook won the race; nothing to do.
			return existing, true, nil
		}
		if existing.Status == models.PaymentStatusPending && strings.EqualFold(in.Status, "succeeded") {
			return s.completePendingPayment(ctx, existing)
		}
		return existing, true, nil
	}

	status := models.PaymentStatusCompleted
	if strings.EqualFold(in.Status, "failed") {
		status = models.PaymentStatusFailed
	}

	payment, already, err := s.RecordPayment(ctx, RecordPaymentInput{
		Provider:          in.Provider,
		ProviderPaymentID: in.ProviderPaymentID,
		Amount:            in.Amount,
		Currency:          in.Currency,
		Status:            status,
		ProcessingSource:  models.PaymentSourceClientFallback,
		CustomerEmail:     in.CustomerEmail,
	})
	if err != nil {
		return payment, already, err
	}
	return payment, already, nil
}

// completePendingPayment promotes a pending row to completed. The conditional
// status update picks a single winner among concurrent notifications; only the
// winner books the transaction and runs the reconciler.
func (s *Service) completePendingPayment(ctx context.Context, p *models.Payment) (*models.Payment, bool, error) {
	won, err := s.repo.CompletePendingPayment(p.ID)
	if err != nil {
		return nil, false, err
	}
	if !won {
		updated, err := s.repo.GetPayment(p.ID)
		if err != nil {
			return nil, false, err
		}
		return updated, true, nil
	}
	if err := s.recordTransaction(p, models.TransactionTypePayment, p.Amount); err != nil {
		return nil, false, err
	}
	if p.InvoiceID != nil {
		if err := s.ReconcileInvoice(ctx, *p.InvoiceID); err != nil {
			return nil, false, err
		}
	}
	updated, err := s.repo.GetPayment(p.ID)
	if err != nil {
		return nil, false, err
	}
	return updated, false, nil
}

func (s *Service) recordTransaction(p *models.Payment, txType string, amount int64) error {
	if txType == models.TransactionTypeRefund {
		amount = -amount
	}
	return s.repo.CreateTransaction(&models.Transaction{
		Type:        txType,
		CompanyName: p.CompanyName,
		PaymentID:   p.ID,
		Amount:      amount,
		Currency:    p.Currency,
		Description: fmt.Sprintf("%s %s/%s", txType, p.Provider, p.ProviderPaymentID),
	})
}

// RecordWebhookEvent persists a delivery attempt idempotently. Events without
// a provider event id are keyed by a payload hash so replays of the same body
// still deduplicate.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.Payload))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		Payload:         in.Payload,
		SignatureValid:  in.SignatureValid,
		ExpiresAt:       time.Now().Add(models.WebhookEventTTL),
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// PurgeExpiredWebhookEvents removes audit rows past their TTL.
func (s *Service) PurgeExpiredWebhookEvents(ctx context.Context) (int64, error) {
	_ = ctx
	return s.repo.DeleteExpiredWebhookEvents(time.Now())
}
