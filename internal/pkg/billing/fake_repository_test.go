package billing

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lingodesk/lingodesk/app/models"
)

// fakeRepository is an in-memory ledger with the same conditional-insert
// semantics as the GORM implementation. It is safe for concurrent use so the
// race-convergence tests can hammer it from multiple goroutines.
type fakeRepository struct {
	mu sync.Mutex

	payments      map[string]*models.Payment // by internal id
	paymentByProv map[[2]string]string       // (provider, provider_payment_id) -> internal id
	refunds       map[[2]string]*models.Refund
	invoices      map[string]*models.Invoice
	subscriptions map[string]*models.Subscription
	companies     map[string]bool
	events        map[uint]*models.WebhookEvent
	eventByProv   map[[2]string]uint
	transactions  []models.Transaction
	nextEventID   uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		payments:      make(map[string]*models.Payment),
		paymentByProv: make(map[[2]string]string),
		refunds:       make(map[[2]string]*models.Refund),
		invoices:      make(map[string]*models.Invoice),
		subscriptions: make(map[string]*models.Subscription),
		companies:     make(map[string]bool),
		events:        make(map[uint]*models.WebhookEvent),
		eventByProv:   make(map[[2]string]uint),
	}
}

func (f *fakeRepository) paymentCopy(p *models.Payment) *models.Payment {
	cp := *p
	cp.Refunds = make([]models.Refund, len(p.Refunds))
	copy(cp.Refunds, p.Refunds)
	return &cp
}

func (f *fakeRepository) GetPayment(id string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f.paymentCopy(p), nil
}

func (f *fakeRepository) GetPaymentByProviderID(provider, providerPaymentID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.paymentByProv[[2]string{provider, providerPaymentID}]
	if !ok {
		return nil, ErrNotFound
	}
	return f.paymentCopy(f.payments[id]), nil
}

func (f *fakeRepository) CreatePaymentIfNotExists(p *models.Payment) (bool, *models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := [2]string{p.Provider, p.ProviderPaymentID}
	if id, ok := f.paymentByProv[key]; ok {
		return false, f.paymentCopy(f.payments[id]), nil
	}

	stored := *p
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.PaymentDate.IsZero() {
		stored.PaymentDate = time.Now().UTC()
	}
	f.payments[stored.ID] = &stored
	f.paymentByProv[key] = stored.ID
	return true, f.paymentCopy(&stored), nil
}

func (f *fakeRepository) UpdatePaymentStatus(id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	return nil
}

func (f *fakeRepository) CompletePendingPayment(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return false, nil
	}
	if p.Status != models.PaymentStatusPending {
		return false, nil
	}
	p.Status = models.PaymentStatusCompleted
	return true, nil
}

func (f *fakeRepository) ListPaymentsByInvoice(invoiceID string) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.InvoiceID != nil && *p.InvoiceID == invoiceID {
			out = append(out, *f.paymentCopy(p))
		}
	}
	return out, nil
}

func (f *fakeRepository) ListPaymentsByCompany(companyName string, limit, skip int) ([]models.Payment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Payment
	for _, p := range f.payments {
		if p.CompanyName == companyName {
			all = append(all, *f.paymentCopy(p))
		}
	}
	total := int64(len(all))
	if skip >= len(all) {
		return nil, total, nil
	}
	all = all[skip:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (f *fakeRepository) AppendRefundIfNotExists(r *models.Refund) (bool, *models.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.payments[r.PaymentID]
	if !ok {
		return false, nil, ErrNotFound
	}

	key := [2]string{r.PaymentID, r.IdempotencyKey}
	if stored, ok := f.refunds[key]; ok {
		cp := *stored
		return false, &cp, nil
	}

	// Bound is checked under the same lock that admits the insert, matching
	// the row-locked transaction in the GORM implementation.
	var refunded int64
	for _, ref := range p.Refunds {
		refunded += ref.Amount
	}
	if available := p.Amount - refunded; r.Amount > available {
		return false, nil, fmt.Errorf("%w: requested %d, available %d", ErrRefundExceedsAvailable, r.Amount, available)
	}

	stored := *r
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	f.refunds[key] = &stored
	p.Refunds = append(p.Refunds, stored)
	cp := stored
	return true, &cp, nil
}

func (f *fakeRepository) GetInvoice(id string) (*models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	cp.LineItems = make([]models.InvoiceLineItem, len(inv.LineItems))
	copy(cp.LineItems, inv.LineItems)
	return &cp, nil
}

func (f *fakeRepository) CreateInvoice(inv *models.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	cp := *inv
	f.invoices[inv.ID] = &cp
	return nil
}

func (f *fakeRepository) SaveInvoiceTotals(inv *models.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.invoices[inv.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Subtotal = inv.Subtotal
	stored.TotalAmount = inv.TotalAmount
	stored.AmountPaid = inv.AmountPaid
	stored.AmountDue = inv.AmountDue
	stored.Status = inv.Status
	return nil
}

func (f *fakeRepository) GetSubscription(id string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subscriptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeRepository) CreateSubscription(sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	cp := *sub
	f.subscriptions[sub.ID] = &cp
	return nil
}

func (f *fakeRepository) UpdateSubscriptionStatus(id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subscriptions[id]
	if !ok {
		return ErrNotFound
	}
	sub.Status = status
	return nil
}

func (f *fakeRepository) CompanyExists(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.companies[name], nil
}

func (f *fakeRepository) CreateWebhookEventIfNotExists(ev *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := [2]string{ev.Provider, ev.ProviderEventID}
	if id, ok := f.eventByProv[key]; ok {
		cp := *f.events[id]
		return false, &cp, nil
	}

	stored := *ev
	f.nextEventID++
	stored.ID = f.nextEventID
	f.events[stored.ID] = &stored
	f.eventByProv[key] = stored.ID
	cp := stored
	return true, &cp, nil
}

func (f *fakeRepository) GetWebhookEvent(id uint) (*models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeRepository) GetWebhookEventByProviderID(provider, providerEventID string) (*models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.eventByProv[[2]string{provider, providerEventID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f.events[id]
	return &cp, nil
}

func (f *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	ev.Processed = true
	ev.ProcessedAt = &now
	ev.Error = processingError
	return nil
}

func (f *fakeRepository) DeleteExpiredWebhookEvents(cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, ev := range f.events {
		if ev.ExpiresAt.Before(cutoff) {
			delete(f.events, id)
			delete(f.eventByProv, [2]string{ev.Provider, ev.ProviderEventID})
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeRepository) CreateTransaction(t *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions = append(f.transactions, *t)
	return nil
}

func (f *fakeRepository) ListTransactionsByCompany(companyName string, limit, skip int) ([]models.Transaction, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Transaction
	for _, t := range f.transactions {
		if t.CompanyName == companyName {
			all = append(all, t)
		}
	}
	total := int64(len(all))
	if skip >= len(all) {
		return nil, total, nil
	}
	all = all[skip:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

// transactionCount is a test helper, not part of the Repository interface.
func (f *fakeRepository) transactionCount(txType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.transactions {
		if t.Type == txType {
			n++
		}
	}
	return n
}
