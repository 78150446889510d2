package domain

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ProviderOutcome is the gateway's normalized view of a provider payment.
type ProviderOutcome string

const (
	// OutcomeInitiated: created at the provider, execute never accepted.
	OutcomeInitiated ProviderOutcome = "initiated"
	OutcomePending   ProviderOutcome = "pending"
	OutcomeCompleted ProviderOutcome = "completed"
	OutcomeFailed    ProviderOutcome = "failed"
)

// IsFinal reports whether the provider has settled the payment either way.
func (o ProviderOutcome) IsFinal() bool {
	return o == OutcomeCompleted || o == OutcomeFailed
}

type CreatePaymentRequest struct {
	Amount         decimal.Decimal
	OrderID        string
	PayerReference string
	CallbackURL    string
}

type CreatePaymentResult struct {
	PaymentID     string
	RedirectURL   string
	StatusCode    string
	StatusMessage string
	Raw           json.RawMessage
}

type ExecutePaymentResult struct {
	PaymentID         string
	TrxID             string
	TransactionStatus string
	StatusCode        string
	StatusMessage     string
	Outcome           ProviderOutcome
	Raw               json.RawMessage
}

type QueryPaymentResult struct {
	PaymentID         string
	TrxID             string
	TransactionStatus string
	StatusCode        string
	StatusMessage     string
	Outcome           ProviderOutcome
	Raw               json.RawMessage
}

// PaymentGateway is the external mobile-wallet provider.
type PaymentGateway interface {
	Name() string
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)
	ExecutePayment(ctx context.Context, paymentID string) (*ExecutePaymentResult, error)
	QueryPayment(ctx context.Context, paymentID string) (*QueryPaymentResult, error)
}

type RefundRequest struct {
	TransactionID     string
	ProviderPaymentID string
	ProviderTrxID     string
	Amount            decimal.Decimal
	Currency          string
	Reason            string
}

// RefundProvider returns funds at the provider. It runs before the local refund is recorded.
type RefundProvider interface {
	Refund(ctx context.Context, req RefundRequest) error
}
