package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	CompanyStatusActive   = "active"
	CompanyStatusInactive = "inactive"
)

// Company is the billing owner of subscriptions and users. Subscriptions
// reference it by name; that reference is deliberately not enforced by the
// store and is audited by the integrity verifier instead.
type Company struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"uniqueIndex;type:varchar(200)" json:"name" validate:"required,min=2,max=200"`
	BillingEmail string         `gorm:"type:varchar(200)" json:"billing_email" validate:"omitempty,email,max=200"`
	Status       string         `gorm:"type:varchar(20);default:'active'" json:"status" validate:"oneof=active inactive"`
	Placeholder  bool           `gorm:"default:false" json:"placeholder"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (co *Company) Validate() error {
	v := validator.New()
	return v.Struct(co)
}
