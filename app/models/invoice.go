package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	InvoiceStatusPending = "pending"
	InvoiceStatusPartial = "partial"
	InvoiceStatusPaid    = "paid"
)

// InvoiceLineItem is a single billed position. Amount is always
// quantity x unit price; it is validated on write and re-derived by the
// reconciler, never trusted from the client.
type InvoiceLineItem struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	InvoiceID   string `gorm:"type:char(36);not null;index" json:"-"`
	Description string `gorm:"type:varchar(500);not null" json:"description"`
	Quantity    int64  `gorm:"not null" json:"quantity"`
	UnitPrice   int64  `gorm:"not null" json:"unit_price"`
	Amount      int64  `gorm:"not null" json:"amount"`
}

// Invoice carries derived money fields (subtotal, total_amount, amount_paid,
// amount_due, status). They are recomputed by the billing reconciler as a
// fold over line items and linked payments; none of them is ever settable by
// a caller.
type Invoice struct {
	ID             string            `gorm:"primaryKey;type:char(36)" json:"id"`
	SubscriptionID *string           `gorm:"type:char(36);index" json:"subscription_id,omitempty"`
	CompanyName    string            `gorm:"type:varchar(200);not null;index" json:"company_name"`
	PeriodStart    time.Time         `gorm:"type:timestamp;not null" json:"period_start"`
	PeriodEnd      time.Time         `gorm:"type:timestamp;not null" json:"period_end"`
	LineItems      []InvoiceLineItem `gorm:"foreignKey:InvoiceID" json:"line_items"`
	TaxAmount      int64             `gorm:"not null;default:0" json:"tax_amount"`
	Subtotal       int64             `gorm:"not null;default:0" json:"subtotal"`
	TotalAmount    int64             `gorm:"not null;default:0" json:"total_amount"`
	AmountPaid     int64             `gorm:"not null;default:0" json:"amount_paid"`
	AmountDue      int64             `gorm:"not null;default:0" json:"amount_due"`
	Status         string            `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Validate checks line items and the billing period. Each item's amount must
// equal quantity x unit_price exactly.
func (i *Invoice) Validate() error {
	if i.CompanyName == "" {
		return errors.New("company_name is required")
	}
	if i.PeriodStart.IsZero() || i.PeriodEnd.IsZero() {
		return errors.New("billing period is required")
	}
	if !i.PeriodEnd.After(i.PeriodStart) {
		return errors.New("period_end must be after period_start")
	}
	if i.TaxAmount < 0 {
		return errors.New("tax_amount must not be negative")
	}
	for idx := range i.LineItems {
		li := &i.LineItems[idx]
		if li.Description == "" {
			return errors.New("line item description is required")
		}
		if li.Quantity <= 0 || li.UnitPrice < 0 {
			return errors.New("line item quantity must be positive and unit_price non-negative")
		}
		if li.Amount != li.Quantity*li.UnitPrice {
			return errors.New("line item amount must equal quantity * unit_price")
		}
	}
	return nil
}

// ComputedSubtotal derives the subtotal from the line items.
func (i *Invoice) ComputedSubtotal() int64 {
	var sum int64
	for _, li := range i.LineItems {
		sum += li.Amount
	}
	return sum
}
