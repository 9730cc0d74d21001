package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	BillingFrequencyMonthly   = "monthly"
	BillingFrequencyQuarterly = "quarterly"
	BillingFrequencyAnnual    = "annual"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusInactive = "inactive"
	SubscriptionStatusExpired  = "expired"
)

// Subscription is a recurring billing agreement owned by a Company. The
// company reference is a plain name string; the store does not enforce it
// (see integrity verifier). Subscriptions referenced by payments or invoices
// are soft-expired, never deleted.
type Subscription struct {
	ID               string     `gorm:"primaryKey;type:char(36)" json:"id"`
	CompanyName      string     `gorm:"type:varchar(200);not null;index:idx_subscriptions_company_name" json:"company_name"`
	BillingFrequency string     `gorm:"type:varchar(16);not null;default:'quarterly'" json:"billing_frequency"`
	PaymentTermsDays int        `gorm:"not null;default:30" json:"payment_terms_days"`
	UnitsPerPeriod   int64      `gorm:"not null;default:0" json:"units_per_period"`
	PricePerUnit     int64      `gorm:"not null;default:0" json:"price_per_unit"`
	Status           string     `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	StartDate        time.Time  `gorm:"type:timestamp;not null" json:"start_date"`
	EndDate          *time.Time `gorm:"type:timestamp;default:null" json:"end_date,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Validate enforces the model invariants that GORM cannot express.
func (s *Subscription) Validate() error {
	switch s.BillingFrequency {
	case BillingFrequencyMonthly, BillingFrequencyQuarterly, BillingFrequencyAnnual:
	case "":
		s.BillingFrequency = BillingFrequencyQuarterly
	default:
		return errors.New("billing_frequency must be monthly, quarterly or annual")
	}
	if s.CompanyName == "" {
		return errors.New("company_name is required")
	}
	if s.PaymentTermsDays <= 0 {
		s.PaymentTermsDays = 30
	}
	if s.StartDate.IsZero() {
		return errors.New("start_date is required")
	}
	if s.EndDate != nil && !s.EndDate.After(s.StartDate) {
		return errors.New("end_date must be after start_date")
	}
	return nil
}

// IsActive reports whether the subscription currently entitles billing.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// PeriodLength returns the billing period duration in months.
func (s *Subscription) PeriodLength() int {
	switch s.BillingFrequency {
	case BillingFrequencyMonthly:
		return 1
	case BillingFrequencyAnnual:
		return 12
	default:
		return 3
	}
}
