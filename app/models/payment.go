package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment providers supported by the webhook endpoints.
const (
	PaymentProviderSquare = "square"
	PaymentProviderStripe = "stripe"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Processing source markers. They record which of the two competing code
// paths created the payment; the client-fallback path reads this instead of
// mere existence because a pending row may have been written by either path.
const (
	PaymentSourceWebhook        = "webhook"
	PaymentSourceClientFallback = "client-fallback"
)

// Payment is one real-world charge. The (provider, provider_payment_id)
// unique index is the sole race-breaker for "exactly one payment per
// charge": both the webhook and the client-fallback path insert through it
// and treat a conflict as already-processed.
type Payment struct {
	ID                string     `gorm:"primaryKey;type:char(36)" json:"id"`
	Provider          string     `gorm:"type:varchar(20);not null;index:ux_payments_provider_payment,unique,priority:1" json:"provider"`
	ProviderPaymentID string     `gorm:"type:varchar(191);not null;index:ux_payments_provider_payment,unique,priority:2" json:"provider_payment_id"`
	InvoiceID         *string    `gorm:"type:char(36);index" json:"invoice_id,omitempty"`
	SubscriptionID    *string    `gorm:"type:char(36);index" json:"subscription_id,omitempty"`
	CompanyName       string     `gorm:"type:varchar(200);index" json:"company_name"`
	Amount            int64      `gorm:"not null" json:"amount"`
	Currency          string     `gorm:"type:char(3);not null" json:"currency"`
	Status            string     `gorm:"type:varchar(16);not null;default:'completed';index" json:"status"`
	ProcessingSource  string     `gorm:"type:varchar(20);not null" json:"processing_source"`
	CustomerEmail     string     `gorm:"type:varchar(200)" json:"customer_email"`
	CardBrand         string     `gorm:"type:varchar(20)" json:"card_brand,omitempty"`
	CardLast4         string     `gorm:"type:varchar(4)" json:"card_last4,omitempty"`
	PaymentDate       time.Time  `gorm:"type:timestamp;not null" json:"payment_date"`
	Refunds           []Refund   `gorm:"foreignKey:PaymentID" json:"refunds"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now().UTC()
	}
	return nil
}

// TotalRefunded sums the refunds applied to this payment.
func (p *Payment) TotalRefunded() int64 {
	var sum int64
	for _, r := range p.Refunds {
		sum += r.Amount
	}
	return sum
}

// RemainingRefundable is the amount still available for refund.
func (p *Payment) RemainingRefundable() int64 {
	return p.Amount - p.TotalRefunded()
}

// PaidContribution is what this payment contributes to an invoice's
// amount_paid: the charge amount minus everything refunded. Failed and
// pending payments contribute nothing.
func (p *Payment) PaidContribution() int64 {
	if p.Status != PaymentStatusCompleted && p.Status != PaymentStatusRefunded {
		return 0
	}
	c := p.Amount - p.TotalRefunded()
	if c < 0 {
		return 0
	}
	return c
}
