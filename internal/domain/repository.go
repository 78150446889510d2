package domain

import (
	"context"
	"time"
)

// Transition is one status change of a transaction together with its order side effects.
// The store applies it only if the stored transaction still has FromStatus and FromVersion.
type Transition struct {
	Transaction *Transaction
	FromStatus  TransactionStatus
	FromVersion int64
	// Order is nil when the transaction is not the one linked to the order.
	Order *Order
}

type TransactionRepository interface {
	// CreateTransaction stores a new PENDING transaction and links it to the order.
	// Superseded, when set, is moved to CANCELLED in the same unit of work.
	CreateTransaction(ctx context.Context, tx *Transaction, order *Order, superseded *Transition) error
	GetTransactionByID(ctx context.Context, transactionID string) (*Transaction, error)
	GetTransactionByPaymentID(ctx context.Context, paymentID string) (*Transaction, error)
	// FindStaleTransactions lists PENDING/PROCESSING transactions last updated before the given instant.
	FindStaleTransactions(ctx context.Context, updatedBefore time.Time, limit int) ([]*Transaction, error)
	ApplyTransition(ctx context.Context, t Transition) error
}

type OrderRepository interface {
	GetOrderByID(ctx context.Context, orderID string) (*Order, error)
	// CancelOrder sets the fulfillment status to CANCELLED if the order still has fromVersion,
	// ErrConcurrentUpdate otherwise.
	CancelOrder(ctx context.Context, orderID string, fromVersion int64, now time.Time) error
}

// OrderWriter mirrors orders announced by the order service.
type OrderWriter interface {
	CreateOrder(ctx context.Context, order *Order) error
}
