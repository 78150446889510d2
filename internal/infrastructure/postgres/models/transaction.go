package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionModel struct {
	ID                string          `gorm:"primaryKey;type:uuid"`
	OrderID           string          `gorm:"not null;index:idx_payment_transactions_order"`
	UserID            string          `gorm:"not null"`
	Amount            decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency          string          `gorm:"type:varchar(3);not null"`
	PaymentMethod     string          `gorm:"not null"`
	Gateway           string          `gorm:"not null"`
	Status            string          `gorm:"not null;index:idx_payment_transactions_status_updated,priority:1"`
	ProviderPaymentID string          `gorm:"not null;uniqueIndex"`
	ProviderTrxID     string
	GatewayResponse   datatypes.JSON      `gorm:"type:jsonb"`
	FailureReason     string
	RefundAmount      decimal.NullDecimal `gorm:"type:numeric(14,2)"`
	RefundReason      string
	RefundedBy        string
	RefundedAt        *time.Time
	Version           int64     `gorm:"not null;default:1"`
	CreatedAt         time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime:false;index:idx_payment_transactions_status_updated,priority:2"`
}

func (TransactionModel) TableName() string {
	return "payment_transactions"
}
