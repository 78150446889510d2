package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentAttempt describes a create-payment call that did not produce a transaction.
type PaymentAttempt struct {
	RequestID string
	OrderID   string
	UserID    string
	Amount    decimal.Decimal
	Currency  string
	Gateway   string
	ErrorKind string
	Code      string
	Message   string
	Timestamp time.Time
}

type PaymentAttemptLogger interface {
	LogAttemptFailed(ctx context.Context, attempt PaymentAttempt) error
}
