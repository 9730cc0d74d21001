package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/lingodesk/lingodesk/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the ledger store used by the billing service. It provides
// atomic single-record reads/writes; the Create*IfNotExists methods are the
// conditional inserts that all idempotency reasoning reduces to.
type Repository interface {
	GetPayment(id string) (*models.Payment, error)
	GetPaymentByProviderID(provider, providerPaymentID string) (*models.Payment, error)
	CreatePaymentIfNotExists(p *models.Payment) (bool, *models.Payment, error)
	UpdatePaymentStatus(id, status string) error
	CompletePendingPayment(id string) (bool, error)
	ListPaymentsByInvoice(invoiceID string) ([]models.Payment, error)
	ListPaymentsByCompany(companyName string, limit, skip int) ([]models.Payment, int64, error)

	AppendRefundIfNotExists(r *models.Refund) (bool, *models.Refund, error)

	GetInvoice(id string) (*models.Invoice, error)
	CreateInvoice(inv *models.Invoice) error
	SaveInvoiceTotals(inv *models.Invoice) error

	GetSubscription(id string) (*models.Subscription, error)
	CreateSubscription(sub *models.Subscription) error
	UpdateSubscriptionStatus(id, status string) error

	CompanyExists(name string) (bool, error)

	CreateWebhookEventIfNotExists(ev *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	GetWebhookEvent(id uint) (*models.WebhookEvent, error)
	GetWebhookEventByProviderID(provider, providerEventID string) (*models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	DeleteExpiredWebhookEvents(cutoff time.Time) (int64, error)

	CreateTransaction(t *models.Transaction) error
	ListTransactionsByCompany(companyName string, limit, skip int) ([]models.Transaction, int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *gormRepository) GetPayment(id string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Preload("Refunds").Where("id = ?", id).First(&p).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &p, nil
}

func (r *gormRepository) GetPaymentByProviderID(provider, providerPaymentID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Preload("Refunds").
		Where("provider = ? AND provider_payment_id = ?", provider, providerPaymentID).
		First(&p).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &p, nil
}

// CreatePaymentIfNotExists inserts the payment guarded by the unique
// (provider, provider_payment_id) index. The index is the final race-breaker
// when two writers pass the existence check concurrently: the loser's insert
// affects zero rows and the stored winner is returned instead.
func (r *gormRepository) CreatePaymentIfNotExists(p *models.Payment) (bool, *models.Payment, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_payment_id"},
		},
		DoNothing: true,
	}).Create(p)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	stored, err := r.GetPaymentByProviderID(p.Provider, p.ProviderPaymentID)
	if err != nil {
		return false, nil, err
	}
	return created, stored, nil
}

func (r *gormRepository) UpdatePaymentStatus(id, status string) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", id).Update("status", status).Error
}

// CompletePendingPayment flips a pending payment to completed. The status
// predicate makes the promotion a single-winner operation: concurrent callers
// race on RowsAffected, not on a prior read.
func (r *gormRepository) CompletePendingPayment(id string) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Update("status", models.PaymentStatusCompleted)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) ListPaymentsByInvoice(invoiceID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Preload("Refunds").Where("invoice_id = ?", invoiceID).Find(&payments).Error
	return payments, err
}

func (r *gormRepository) ListPaymentsByCompany(companyName string, limit, skip int) ([]models.Payment, int64, error) {
	var total int64
	if err := r.db.Model(&models.Payment{}).Where("company_name = ?", companyName).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var payments []models.Payment
	err := r.db.Preload("Refunds").
		Where("company_name = ?", companyName).
		Order("payment_date DESC").
		Limit(limit).Offset(skip).
		Find(&payments).Error
	return payments, total, err
}

// AppendRefundIfNotExists appends a refund inside one transaction that holds
// a row lock on the payment. The lock serializes concurrent refunds against
// the same payment, so the refund-sum bound and the idempotency-key replay
// are both decided against current state, never against a stale snapshot.
func (r *gormRepository) AppendRefundIfNotExists(refund *models.Refund) (bool, *models.Refund, error) {
	var created bool
	var stored models.Refund

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", refund.PaymentID).
			First(&payment).Error; err != nil {
			return mapNotFound(err)
		}

		err := tx.Where("payment_id = ? AND idempotency_key = ?", refund.PaymentID, refund.IdempotencyKey).
			First(&stored).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var refunded int64
		if err := tx.Model(&models.Refund{}).
			Where("payment_id = ?", refund.PaymentID).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&refunded).Error; err != nil {
			return err
		}
		if available := payment.Amount - refunded; refund.Amount > available {
			return fmt.Errorf("%w: requested %d, available %d", ErrRefundExceedsAvailable, refund.Amount, available)
		}

		if err := tx.Create(refund).Error; err != nil {
			return err
		}
		created = true
		stored = *refund
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetInvoice(id string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.Preload("LineItems").Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &inv, nil
}

func (r *gormRepository) CreateInvoice(inv *models.Invoice) error {
	return r.db.Create(inv).Error
}

// SaveInvoiceTotals writes only the derived fields, conditional on the
// invoice still existing. Lost updates between two concurrent reconciliations
// are harmless: both computed the same fold.
func (r *gormRepository) SaveInvoiceTotals(inv *models.Invoice) error {
	res := r.db.Model(&models.Invoice{}).Where("id = ?", inv.ID).Updates(map[string]interface{}{
		"subtotal":     inv.Subtotal,
		"total_amount": inv.TotalAmount,
		"amount_paid":  inv.AmountPaid,
		"amount_due":   inv.AmountDue,
		"status":       inv.Status,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository) GetSubscription(id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &sub, nil
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) UpdateSubscriptionStatus(id, status string) error {
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).Update("status", status).Error
}

func (r *gormRepository) CompanyExists(name string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Company{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, mapNotFound(err)
	}
	return created, &stored, nil
}

func (r *gormRepository) GetWebhookEvent(id uint) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	if err := r.db.Where("id = ?", id).First(&ev).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &ev, nil
}

func (r *gormRepository) GetWebhookEventByProviderID(provider, providerEventID string) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	err := r.db.Where("provider = ? AND provider_event_id = ?", provider, providerEventID).First(&ev).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &ev, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed":    true,
		"processed_at": &now,
		"error":        processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) DeleteExpiredWebhookEvents(cutoff time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", cutoff).Delete(&models.WebhookEvent{})
	return res.RowsAffected, res.Error
}

func (r *gormRepository) CreateTransaction(t *models.Transaction) error {
	return r.db.Create(t).Error
}

func (r *gormRepository) ListTransactionsByCompany(companyName string, limit, skip int) ([]models.Transaction, int64, error) {
	var total int64
	if err := r.db.Model(&models.Transaction{}).Where("company_name = ?", companyName).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txs []models.Transaction
	err := r.db.Where("company_name = ?", companyName).
		Order("created_at DESC").
		Limit(limit).Offset(skip).
		Find(&txs).Error
	return txs, total, err
}
