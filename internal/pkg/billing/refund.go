package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lingodesk/lingodesk/app/models"
)

// RefundPayment applies a refund to an existing payment. Replaying the same
// idempotency key returns the stored refund without double-applying; an
// amount beyond the remaining refundable balance aborts the whole operation.
func (s *Service) RefundPayment(ctx context.Context, in RefundInput) (*models.Payment, *models.Refund, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		return nil, nil, errors.New("idempotency_key is required")
	}

	payment, err := s.repo.GetPaymentByProviderID(strings.ToLower(strings.TrimSpace(in.Provider)), strings.TrimSpace(in.ProviderPaymentID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: payment %s/%s", ErrNotFound, in.Provider, in.ProviderPaymentID)
		}
		return nil, nil, err
	}

	// Replay check before the bounds check: a replayed key must return the
	// original refund even if the balance has since been exhausted.
	for i := range payment.Refunds {
		if payment.Refunds[i].IdempotencyKey == key {
			return payment, &payment.Refunds[i], nil
		}
	}

	if in.Amount <= 0 {
		return nil, nil, fmt.Errorf("%w: refund amount must be positive, got %d", ErrInvalidAmount, in.Amount)
	}
	// Fast-path bound check on the snapshot. The authoritative check runs
	// inside AppendRefundIfNotExists under a lock on the payment, so two
	// concurrent refunds with distinct keys cannot both pass on a stale sum.
	if available := payment.RemainingRefundable(); in.Amount > available {
		return nil, nil, fmt.Errorf("%w: requested %d, available %d", ErrRefundExceedsAvailable, in.Amount, available)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = payment.Currency
	}

	refund := &models.Refund{
		PaymentID:        payment.ID,
		IdempotencyKey:   key,
		ProviderRefundID: strings.TrimSpace(in.ProviderRefundID),
		Amount:           in.Amount,
		Currency:         currency,
		Status:           models.RefundStatusCompleted,
	}

	created, stored, err := s.repo.AppendRefundIfNotExists(refund)
	if err != nil {
		return nil, nil, err
	}
	if !created {
		// A concurrent submit with the same key won; theirs is the answer.
		updated, err := s.repo.GetPayment(payment.ID)
		if err != nil {
			return nil, nil, err
		}
		return updated, stored, nil
	}

	if err := s.repo.UpdatePaymentStatus(payment.ID, models.PaymentStatusRefunded); err != nil {
		return nil, nil, err
	}
	if err := s.recordTransaction(payment, models.TransactionTypeRefund, stored.Amount); err != nil {
		return nil, nil, err
	}
	if payment.InvoiceID != nil {
		if err := s.ReconcileInvoice(ctx, *payment.InvoiceID); err != nil {
			return nil, nil, err
		}
	}

	updated, err := s.repo.GetPayment(payment.ID)
	if err != nil {
		return nil, nil, err
	}
	return updated, stored, nil
}
