package domain

import (
	"context"
	"time"
)

type Message struct {
	Key   []byte
	Value []byte
}

type PublisherPort interface {
	Publish(ctx context.Context, topic string, msgs ...Message) error
}

type PaymentEvent struct {
	EventID           string            `json:"event_id"`
	TransactionID     string            `json:"transaction_id"`
	OrderID           string            `json:"order_id"`
	UserID            string            `json:"user_id"`
	ProviderPaymentID string            `json:"provider_payment_id"`
	ProviderTrxID     string            `json:"provider_trx_id,omitempty"`
	OldStatus         TransactionStatus `json:"old_status,omitempty"`
	NewStatus         TransactionStatus `json:"new_status"`
	PaymentStatus     PaymentStatus     `json:"payment_status"`
	Amount            string            `json:"amount"`
	Currency          string            `json:"currency"`
	Reason            string            `json:"reason,omitempty"`
	OccurredAt        time.Time         `json:"occurred_at"`
}

type PaymentEventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event PaymentEvent) error
}
