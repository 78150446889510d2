package paymentdto

type InitiatePaymentInput struct {
	OrderID string
	UserID  string
}

// CompletePaymentInput identifies the payment to execute. UserID is empty for provider callbacks.
type CompletePaymentInput struct {
	PaymentID string
	UserID    string
}

type QueryPaymentInput struct {
	PaymentID string
	UserID    string
}

// CancelPaymentInput names the payment either by provider payment id or by order id.
// With CancelOrder the order itself is cancelled, whether or not it has a pending payment.
type CancelPaymentInput struct {
	PaymentID   string
	OrderID     string
	Reason      string
	CancelOrder bool
	// ConfirmWithProvider cancels only after the provider reports the payment as never executed.
	ConfirmWithProvider bool
}

type RefundInput struct {
	TransactionID string
	Reason        string
	ActorID       string
}
