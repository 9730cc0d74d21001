package models

import "time"

const (
	TransactionTypePayment = "payment"
	TransactionTypeRefund  = "refund"
)

// Transaction is an append-only bookkeeping row. One is written for every
// recorded payment and every applied refund; refunds carry a negative
// amount so a company ledger sums to its net received money.
type Transaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Type        string    `gorm:"type:varchar(16);not null;index" json:"type"`
	CompanyName string    `gorm:"type:varchar(200);index" json:"company_name"`
	PaymentID   string    `gorm:"type:char(36);not null;index" json:"payment_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Currency    string    `gorm:"type:char(3);not null" json:"currency"`
	Description string    `gorm:"type:varchar(500)" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
