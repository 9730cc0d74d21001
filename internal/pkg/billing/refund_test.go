package billing

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingodesk/lingodesk/app/models"
)

func seedPayment(t *testing.T, svc *Service, providerPaymentID string, amount int64) *models.Payment {
	t.Helper()
	p, _, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		Provider:          "square",
		ProviderPaymentID: providerPaymentID,
		Amount:            amount,
		Currency:          "EUR",
	})
	require.NoError(t, err)
	return p
}

func TestRefundPayment(t *testing.T) {
	svc, repo := newTestService()
	seedPayment(t, svc, "sq-pay-1", 10000)

	payment, refund, err := svc.RefundPayment(context.Background(), RefundInput{
		Provider:          "square",
		ProviderPaymentID: "sq-pay-1",
		ProviderRefundID:  "sq-ref-1",
		Amount:            4000,
		IdempotencyKey:    "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4000), refund.Amount)
	assert.Equal(t, "EUR", refund.Currency)
	assert.Equal(t, models.RefundStatusCompleted, refund.Status)
	assert.Equal(t, models.PaymentStatusRefunded, payment.Status)
	assert.Equal(t, int64(6000), payment.RemainingRefundable())

	// Bookkeeping: one negative refund row next to the payment row.
	assert.Equal(t, 1, repo.transactionCount(models.TransactionTypeRefund))
}

func TestRefundMissingIdempotencyKey(t *testing.T) {
	svc, _ := newTestService()
	seedPayment(t, svc, "sq-pay-1", 10000)

	_, _, err := svc.RefundPayment(context.Background(), RefundInput{
		Provider:          "square",
		ProviderPaymentID: "sq-pay-1",
		Amount:            1000,
	})
	assert.Error(t, err)
}

func TestRefundUnknownPayment(t *testing.T) {
	svc, _ := newTestService()

	_, _, err := svc.RefundPayment(context.Background(), RefundInput{
		Provider:          "square",
		ProviderPaymentID: "no-such-payment",
		Amount:            1000,
		IdempotencyKey:    "key-1",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefundBounds(t *testing.T) {
	svc, _ := newTestService()
	seedPayment(t, svc, "sq-pay-1", 10000)

	_, _, err := svc.RefundPayment(context.Background(), RefundInput{
		Provider: "square", ProviderPaymentID: "sq-pay-1",
		Amount: 0, IdempotencyKey: "key-zero",
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = svc.RefundPayment(context.Background(), RefundInput{
		Provider: "square", ProviderPaymentID: "sq-pay-1",
		Amount: -100, IdempotencyKey: "key-neg",
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = svc.RefundPayment(context.Background(), RefundInput{
		Provider: "square", ProviderPaymentID: "sq-pay-1",
		Amount: 10001, IdempotencyKey: "key-over",
	})
	assert.ErrorIs(t, err, ErrRefundExceedsAvailable)
}

func TestRefundOverRemainingBalance(t *testing.T) {
	svc, _ := newTestService()
	seedPayment(t, svc, "sq-pay-1", 10000)

	_, _, err := svc.RefundPayment(context.Background(), RefundInput{
		Provider: "square", ProviderPaymentID: "sq-pay-1",
		Amount: 7000, IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	// Only 3000 is left; 4000 must be rejected as a whole.
	payment, _, err := svc.RefundPayment(context.Background(), RefundInput{
		Provider: "square", ProviderPaymentID: "sq-pay-1",
		Amount: 4000, IdempotencyKey: "key-2",
	})
	assert.ErrorIs(t, err, ErrRefundExceedsAvailable)
	assert.Nil(t, payment)

	// The remainder itself still goes through.
	payment, _, err = svc.RefundPayment(context.Background(), RefundInput{
		Provider: "square", ProviderPaymentID: "sq-pay-1",
		Amount: 3000, IdempotencyKey: "key-3",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), payment.RemainingRefundable())
}

func TestRefundIdempotencyKeyReplay(t *testing.T) {
	svc, repo := newTestService()
	seedPayment(t, svc, "sq-pay-1", 10000)

	_, first, err := svc.RefundPayment(context.Background(), RefundInput{
		Provider: "square", ProviderPaymentID: "sq-pay-1",
		Amount: 4000, IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	payment, second, err := svc.RefundPayment(context.Background(), RefundInput{
		Provider: "square", ProviderPaymentID: "sq-pay-1",
		Amount: 4000, IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(6000), payment.RemainingRefundable())
	assert.Equal(t, 1, repo.transactionCount(models.TransactionTypeRefund))
}

// Concurrent refunds with distinct idempotency keys race on the store's
// locked bound check, not on their own snapshots: each fits the balance
// alone, but only one may apply.
func TestRefundConcurrentDistinctKeysRespectBound(t *testing.T) {
	svc, repo := newTestService()
	seedPayment(t, svc, "sq-pay-1", 10000)

	const writers = 4
	var wg sync.WaitGroup
	applied := make(chan bool, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _, err := svc.RefundPayment(context.Background(), RefundInput{
				Provider:          "square",
				ProviderPaymentID: "sq-pay-1",
				Amount:            6000,
				IdempotencyKey:    fmt.Sprintf("key-%d", n),
			})
			if err == nil {
				applied <- true
			} else {
				assert.ErrorIs(t, err, ErrRefundExceedsAvailable)
			}
		}(i)
	}
	wg.Wait()
	close(applied)

	winners := 0
	for range applied {
		winners++
	}
	assert.Equal(t, 1, winners, "only one 6000 refund fits a 10000 payment")

	payment, err := svc.AlreadyRecorded(context.Background(), "square", "sq-pay-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), payment.TotalRefunded())
	assert.LessOrEqual(t, payment.TotalRefunded(), payment.Amount)
	assert.Equal(t, 1, repo.transactionCount(models.TransactionTypeRefund))
}

// A replayed key must return the stored refund even when the remaining
// balance could no longer cover it.
func TestRefundReplayAfterBalanceExhausted(t *testing.T) {
	svc, _ := newTestService()
	seedPayment(t, svc, "sq-pay-1", 10000)

	_, _, err := svc.RefundPayment(context.Background(), RefundInput{
		Provider: "square", ProviderPaymentID: "sq-pay-1",
		Amount: 6000, IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	_, _, err = svc.RefundPayment(context.Background(), RefundInput{
		Provider: "square", ProviderPaymentID: "sq-pay-1",
		Amount: 4000, IdempotencyKey: "key-2",
	})
	require.NoError(t, err)

	payment, replayed, err := svc.RefundPayment(context.Background(), RefundInput{
		Provider: "square", ProviderPaymentID: "sq-pay-1",
		Amount: 6000, IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6000), replayed.Amount)
	assert.Equal(t, int64(0), payment.RemainingRefundable())
}

func TestRefundReconcilesLinkedInvoice(t *testing.T) {
	svc, repo := newTestService()
	inv := seedInvoice(t, repo, nil, 10000)

	_, _, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		Provider: "square", ProviderPaymentID: "sq-pay-1",
		Amount: 10000, Currency: "EUR", InvoiceID: inv.ID,
	})
	require.NoError(t, err)

	_, _, err = svc.RefundPayment(context.Background(), RefundInput{
		Provider: "square", ProviderPaymentID: "sq-pay-1",
		Amount: 10000, IdempotencyKey: "key-full",
	})
	require.NoError(t, err)

	got, err := repo.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.AmountPaid)
	assert.Equal(t, int64(10000), got.AmountDue)
	assert.Equal(t, models.InvoiceStatusPending, got.Status)
}
