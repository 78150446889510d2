package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "PENDING"
	TransactionProcessing TransactionStatus = "PROCESSING"
	TransactionCompleted  TransactionStatus = "COMPLETED"
	TransactionFailed     TransactionStatus = "FAILED"
	TransactionRefunded   TransactionStatus = "REFUNDED"
	TransactionCancelled  TransactionStatus = "CANCELLED"
)

// IsTerminal reports whether no payment outcome can follow this status.
// COMPLETED still allows a refund.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionCompleted, TransactionFailed, TransactionRefunded, TransactionCancelled:
		return true
	}
	return false
}

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionPending:    {TransactionProcessing, TransactionCompleted, TransactionFailed, TransactionCancelled},
	TransactionProcessing: {TransactionCompleted, TransactionFailed},
	TransactionCompleted:  {TransactionRefunded},
}

func CanTransition(from, to TransactionStatus) bool {
	for _, next := range transactionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	MethodMobileWallet   PaymentMethod = "mobile_wallet"
	MethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	MethodCard           PaymentMethod = "card"
	MethodOther          PaymentMethod = "other"
)

// Keys of Transaction.GatewayResponse.
const (
	ResponseCreate  = "create"
	ResponseExecute = "execute"
	ResponseQuery   = "query"
)

type RefundInfo struct {
	Amount     decimal.Decimal
	Reason     string
	RefundedBy string
	RefundedAt time.Time
}

type Transaction struct {
	ID                string
	OrderID           string
	UserID            string
	Amount            decimal.Decimal
	Currency          string
	PaymentMethod     PaymentMethod
	Gateway           string
	Status            TransactionStatus
	ProviderPaymentID string
	ProviderTrxID     string
	GatewayResponse   map[string]json.RawMessage
	FailureReason     string
	Refund            *RefundInfo
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type NewTransactionParams struct {
	ID                string
	OrderID           string
	UserID            string
	Amount            decimal.Decimal
	Currency          string
	PaymentMethod     PaymentMethod
	Gateway           string
	ProviderPaymentID string
	CreateResponse    json.RawMessage
	Now               time.Time
}

// NewTransaction builds a PENDING transaction for a successfully created provider payment.
func NewTransaction(p NewTransactionParams) (*Transaction, error) {
	if p.OrderID == "" || p.UserID == "" {
		return nil, fmt.Errorf("transaction requires order and user: %w", ErrInvalidTransaction)
	}
	if !p.Amount.IsPositive() {
		return nil, fmt.Errorf("amount %s must be positive: %w", p.Amount.String(), ErrInvalidTransaction)
	}
	if p.ProviderPaymentID == "" {
		return nil, fmt.Errorf("provider payment id is empty: %w", ErrInvalidTransaction)
	}
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	tx := &Transaction{
		ID:                id,
		OrderID:           p.OrderID,
		UserID:            p.UserID,
		Amount:            p.Amount,
		Currency:          p.Currency,
		PaymentMethod:     p.PaymentMethod,
		Gateway:           p.Gateway,
		Status:            TransactionPending,
		ProviderPaymentID: p.ProviderPaymentID,
		GatewayResponse:   map[string]json.RawMessage{},
		CreatedAt:         p.Now,
		UpdatedAt:         p.Now,
	}
	if len(p.CreateResponse) > 0 {
		tx.GatewayResponse[ResponseCreate] = p.CreateResponse
	}
	return tx, nil
}

// Clone returns a deep copy, so a transition can be prepared without touching the loaded record.
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.GatewayResponse = make(map[string]json.RawMessage, len(t.GatewayResponse))
	for k, v := range t.GatewayResponse {
		c.GatewayResponse[k] = append(json.RawMessage(nil), v...)
	}
	if t.Refund != nil {
		r := *t.Refund
		c.Refund = &r
	}
	return &c
}

func (t *Transaction) transition(to TransactionStatus, now time.Time) error {
	if !CanTransition(t.Status, to) {
		return &TransitionError{TransactionID: t.ID, From: t.Status, To: to}
	}
	t.Status = to
	t.UpdatedAt = now
	return nil
}

func (t *Transaction) recordResponse(key string, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	if t.GatewayResponse == nil {
		t.GatewayResponse = map[string]json.RawMessage{}
	}
	t.GatewayResponse[key] = raw
}

// MarkProcessing records that an execute call is about to be dispatched.
func (t *Transaction) MarkProcessing(now time.Time) error {
	return t.transition(TransactionProcessing, now)
}

func (t *Transaction) Complete(trxID, responseKey string, raw json.RawMessage, now time.Time) error {
	if err := t.transition(TransactionCompleted, now); err != nil {
		return err
	}
	t.ProviderTrxID = trxID
	t.FailureReason = ""
	t.recordResponse(responseKey, raw)
	return nil
}

func (t *Transaction) Fail(reason, responseKey string, raw json.RawMessage, now time.Time) error {
	if err := t.transition(TransactionFailed, now); err != nil {
		return err
	}
	if reason == "" {
		reason = "payment failed"
	}
	t.FailureReason = reason
	t.recordResponse(responseKey, raw)
	return nil
}

func (t *Transaction) Cancel(now time.Time) error {
	return t.transition(TransactionCancelled, now)
}

// ApplyRefund moves a COMPLETED transaction to REFUNDED. Any other status is not refundable.
func (t *Transaction) ApplyRefund(reason, actorID string, now time.Time) error {
	if t.Status != TransactionCompleted {
		return fmt.Errorf("transaction %s in status %s: %w", t.ID, t.Status, ErrNotRefundable)
	}
	if err := t.transition(TransactionRefunded, now); err != nil {
		return err
	}
	t.Refund = &RefundInfo{
		Amount:     t.Amount,
		Reason:     reason,
		RefundedBy: actorID,
		RefundedAt: now,
	}
	return nil
}

// Validate checks the field invariants that must hold for any persisted transaction.
func (t *Transaction) Validate() error {
	if t.Amount.IsNegative() {
		return fmt.Errorf("negative amount: %w", ErrInvalidTransaction)
	}
	if (t.Status == TransactionRefunded) != (t.Refund != nil) {
		return fmt.Errorf("refund data inconsistent with status %s: %w", t.Status, ErrInvalidTransaction)
	}
	if t.Status != TransactionFailed && t.FailureReason != "" {
		return fmt.Errorf("failure reason present in status %s: %w", t.Status, ErrInvalidTransaction)
	}
	return nil
}
