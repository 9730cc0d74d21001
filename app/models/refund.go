package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const RefundStatusCompleted = "completed"

// Refund is one (partial) refund applied to a Payment. The idempotency key
// is unique per payment: re-submitting the same key must return the stored
// refund instead of applying a second one, and the unique index is what
// enforces that under concurrent submits.
type Refund struct {
	ID               string    `gorm:"primaryKey;type:char(36)" json:"id"`
	PaymentID        string    `gorm:"type:char(36);not null;index:ux_refunds_payment_idem,unique,priority:1" json:"-"`
	IdempotencyKey   string    `gorm:"type:varchar(100);not null;index:ux_refunds_payment_idem,unique,priority:2" json:"idempotency_key"`
	ProviderRefundID string    `gorm:"type:varchar(191)" json:"provider_refund_id"`
	Amount           int64     `gorm:"not null" json:"amount"`
	Currency         string    `gorm:"type:char(3);not null" json:"currency"`
	Status           string    `gorm:"type:varchar(16);not null;default:'completed'" json:"status"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *Refund) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
