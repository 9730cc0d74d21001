package billing

import (
	"context"
	"fmt"

	"github.com/lingodesk/lingodesk/app/models"
)

// ReconcileInvoice recomputes an invoice's derived money fields from current
// state: subtotal from line items, amount_paid from a fold over every linked
// payment minus its refunds. It is not an incremental counter, so replays and
// concurrent runs converge to the same numbers.
func (s *Service) ReconcileInvoice(ctx context.Context, invoiceID string) error {
	_ = ctx
	invoice, err := s.repo.GetInvoice(invoiceID)
	if err != nil {
		return fmt.Errorf("reconcile invoice %s: %w", invoiceID, err)
	}

	invoice.Subtotal = invoice.ComputedSubtotal()
	invoice.TotalAmount = invoice.Subtotal + invoice.TaxAmount

	payments, err := s.repo.ListPaymentsByInvoice(invoice.ID)
	if err != nil {
		return fmt.Errorf("reconcile invoice %s: %w", invoiceID, err)
	}

	var paid int64
	for _, p := range payments {
		paid += p.PaidContribution()
	}
	invoice.AmountPaid = paid

	due := invoice.TotalAmount - invoice.AmountPaid
	if due < 0 {
		due = 0
	}
	invoice.AmountDue = due
	invoice.Status = invoiceStatusFor(invoice.AmountPaid, invoice.AmountDue)

	return s.repo.SaveInvoiceTotals(invoice)
}

func invoiceStatusFor(paid, due int64) string {
	switch {
	case due == 0:
		return models.InvoiceStatusPaid
	case paid > 0:
		return models.InvoiceStatusPartial
	default:
		return models.InvoiceStatusPending
	}
}
