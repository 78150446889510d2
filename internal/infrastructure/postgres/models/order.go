package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderModel maps the payment columns of the orders table.
type OrderModel struct {
	ID            string          `gorm:"primaryKey"`
	UserID        string          `gorm:"not null;index"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency      string          `gorm:"type:varchar(3);not null"`
	PaymentMethod string          `gorm:"not null"`
	PaymentStatus string          `gorm:"not null"`
	Status        string          `gorm:"not null"`
	TransactionID *string         `gorm:"type:uuid"`
	Version       int64           `gorm:"not null;default:0"`
	CreatedAt     time.Time       `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime:false"`
}

func (OrderModel) TableName() string {
	return "orders"
}
