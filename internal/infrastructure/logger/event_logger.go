package logger

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentAttemptEvent is one failed create-payment round trip. Failed attempts never get a
// transaction row, this table is their only trace.
type PaymentAttemptEvent struct {
	ID        uint `gorm:"primaryKey"`
	RequestID string
	OrderID   string `gorm:"index"`
	UserID    string
	Amount    decimal.Decimal `gorm:"type:numeric(14,2)"`
	Currency  string
	Gateway   string
	ErrorKind string
	Code      string
	Message   string
	Timestamp time.Time
}

func (PaymentAttemptEvent) TableName() string {
	return "payment_attempt_events"
}

type PGPaymentAttemptLogger struct {
	db *gorm.DB
}

func NewPGPaymentAttemptLogger(db *gorm.DB) *PGPaymentAttemptLogger {
	return &PGPaymentAttemptLogger{db: db}
}

func (l *PGPaymentAttemptLogger) LogAttemptFailed(ctx context.Context, attempt domain.PaymentAttempt) error {
	event := PaymentAttemptEvent{
		RequestID: attempt.RequestID,
		OrderID:   attempt.OrderID,
		UserID:    attempt.UserID,
		Amount:    attempt.Amount,
		Currency:  attempt.Currency,
		Gateway:   attempt.Gateway,
		ErrorKind: attempt.ErrorKind,
		Code:      attempt.Code,
		Message:   attempt.Message,
		Timestamp: attempt.Timestamp,
	}
	return l.db.WithContext(ctx).Create(&event).Error
}
