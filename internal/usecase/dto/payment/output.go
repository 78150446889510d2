package paymentdto

import (
	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/shopspring/decimal"
)

type InitiatePaymentOutput struct {
	TransactionID string
	PaymentID     string
	RedirectURL   string
	Amount        decimal.Decimal
	Currency      string
}

type TransactionOutput struct {
	// Transaction is nil when an order was cancelled before any payment was created.
	Transaction *domain.Transaction
	// Order is nil when the order record could not be loaded.
	Order *domain.Order
}

type PaymentStatusOutput struct {
	Transaction     *domain.Transaction
	ProviderStatus  string
	ProviderOutcome domain.ProviderOutcome
	ProviderTrxID   string
	ProviderError   string
}

type ReconcileResult struct {
	Resolved     int
	StillPending int
	Skipped      int
	Errors       map[string]error
}
