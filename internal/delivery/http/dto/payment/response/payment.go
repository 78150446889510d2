package response

import (
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	paymentdto "github.com/LavaJover/shvark-payment-service/internal/usecase/dto/payment"
)

type InitiatePaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	PaymentID     string `json:"payment_id"`
	RedirectURL   string `json:"redirect_url"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

type RefundResponse struct {
	Amount     string    `json:"amount"`
	Reason     string    `json:"reason,omitempty"`
	RefundedBy string    `json:"refunded_by,omitempty"`
	RefundedAt time.Time `json:"refunded_at"`
}

type TransactionResponse struct {
	ID                 string          `json:"id"`
	OrderID            string          `json:"order_id"`
	PaymentID          string          `json:"payment_id"`
	TrxID              string          `json:"trx_id,omitempty"`
	Status             string          `json:"status"`
	Amount             string          `json:"amount"`
	Currency           string          `json:"currency"`
	Gateway            string          `json:"gateway"`
	FailureReason      string          `json:"failure_reason,omitempty"`
	Refund             *RefundResponse `json:"refund,omitempty"`
	OrderPaymentStatus string          `json:"order_payment_status,omitempty"`
	OrderStatus        string          `json:"order_status,omitempty"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	// Error and Code are set when the provider declined the payment.
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

type PaymentStatusResponse struct {
	Transaction     TransactionResponse `json:"transaction"`
	ProviderStatus  string              `json:"provider_status,omitempty"`
	ProviderOutcome string              `json:"provider_outcome,omitempty"`
	ProviderTrxID   string              `json:"provider_trx_id,omitempty"`
	ProviderError   string              `json:"provider_error,omitempty"`
}

type ReconcileResponse struct {
	Resolved     int               `json:"resolved"`
	StillPending int               `json:"still_pending"`
	Skipped      int               `json:"skipped"`
	Errors       map[string]string `json:"errors,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func FromInitiate(out *paymentdto.InitiatePaymentOutput) InitiatePaymentResponse {
	return InitiatePaymentResponse{
		TransactionID: out.TransactionID,
		PaymentID:     out.PaymentID,
		RedirectURL:   out.RedirectURL,
		Amount:        out.Amount.StringFixed(2),
		Currency:      out.Currency,
	}
}

func FromTransaction(tx *domain.Transaction, order *domain.Order) TransactionResponse {
	resp := TransactionResponse{
		ID:            tx.ID,
		OrderID:       tx.OrderID,
		PaymentID:     tx.ProviderPaymentID,
		TrxID:         tx.ProviderTrxID,
		Status:        string(tx.Status),
		Amount:        tx.Amount.StringFixed(2),
		Currency:      tx.Currency,
		Gateway:       tx.Gateway,
		FailureReason: tx.FailureReason,
		Version:       tx.Version,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
	}
	if tx.Refund != nil {
		resp.Refund = &RefundResponse{
			Amount:     tx.Refund.Amount.StringFixed(2),
			Reason:     tx.Refund.Reason,
			RefundedBy: tx.Refund.RefundedBy,
			RefundedAt: tx.Refund.RefundedAt,
		}
	}
	if order != nil {
		resp.OrderPaymentStatus = string(order.PaymentStatus)
		resp.OrderStatus = string(order.Status)
	}
	return resp
}

func FromStatus(out *paymentdto.PaymentStatusOutput) PaymentStatusResponse {
	return PaymentStatusResponse{
		Transaction:     FromTransaction(out.Transaction, nil),
		ProviderStatus:  out.ProviderStatus,
		ProviderOutcome: string(out.ProviderOutcome),
		ProviderTrxID:   out.ProviderTrxID,
		ProviderError:   out.ProviderError,
	}
}

func FromReconcile(res *paymentdto.ReconcileResult) ReconcileResponse {
	resp := ReconcileResponse{
		Resolved:     res.Resolved,
		StillPending: res.StillPending,
		Skipped:      res.Skipped,
	}
	if len(res.Errors) > 0 {
		resp.Errors = make(map[string]string, len(res.Errors))
		for id, err := range res.Errors {
			resp.Errors[id] = err.Error()
		}
	}
	return resp
}
