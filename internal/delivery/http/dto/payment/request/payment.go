package request

type InitiatePaymentRequest struct {
	OrderID string `json:"order_id"`
}

type RefundRequest struct {
	Reason string `json:"reason"`
}

// ReconcileRequest with no ids reconciles the stale transactions.
type ReconcileRequest struct {
	TransactionIDs []string `json:"transaction_ids"`
}
