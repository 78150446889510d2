package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment status of an order.
type OrderStatus string

const (
	StatusPending        OrderStatus = "PENDING"
	StatusConfirmed      OrderStatus = "CONFIRMED"
	StatusPreparing      OrderStatus = "PREPARING"
	StatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	StatusDelivered      OrderStatus = "DELIVERED"
	StatusCanceled       OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

// Order is the payment-relevant slice of a customer order.
type Order struct {
	ID            string
	UserID        string
	TotalAmount   decimal.Decimal
	Currency      string
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	Status        OrderStatus
	TransactionID string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (o *Order) Clone() *Order {
	c := *o
	return &c
}

// PaymentStatusFor derives the order payment status from the linked transaction status.
func PaymentStatusFor(s TransactionStatus) PaymentStatus {
	switch s {
	case TransactionProcessing:
		return PaymentProcessing
	case TransactionCompleted:
		return PaymentCompleted
	case TransactionFailed, TransactionCancelled:
		return PaymentFailed
	case TransactionRefunded:
		return PaymentRefunded
	default:
		return PaymentPending
	}
}

// CheckPayable rejects orders that must not start a new gateway payment.
func (o *Order) CheckPayable() error {
	switch o.PaymentStatus {
	case PaymentCompleted, PaymentRefunded:
		return ErrAlreadyPaid
	case PaymentProcessing:
		return ErrPaymentInProgress
	}
	if o.Status != StatusPending {
		return ErrOrderNotPayable
	}
	if o.PaymentMethod != MethodMobileWallet {
		return ErrOrderNotPayable
	}
	if !o.TotalAmount.IsPositive() {
		return ErrOrderNotPayable
	}
	return nil
}

// SyncWith applies the payment side effects of a transaction status change to the order.
// Orders linked to another transaction are left untouched.
func (o *Order) SyncWith(tx *Transaction, now time.Time) bool {
	if o.TransactionID != tx.ID {
		return false
	}
	o.PaymentStatus = PaymentStatusFor(tx.Status)
	switch tx.Status {
	case TransactionCompleted:
		if o.Status == StatusPending {
			o.Status = StatusConfirmed
		}
	case TransactionRefunded:
		o.Status = StatusCanceled
	}
	o.UpdatedAt = now
	return true
}
