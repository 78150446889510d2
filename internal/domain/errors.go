package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotPayable     = errors.New("order is not payable")
	ErrAlreadyPaid         = errors.New("order is already paid")
	ErrPaymentInProgress   = errors.New("payment is already in progress")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInvalidTransition   = errors.New("invalid transaction status transition")
	ErrNotRefundable       = errors.New("transaction is not refundable")
	ErrConcurrentUpdate    = errors.New("transaction was modified concurrently")

	// ErrOutcomeUnknown: execute was dispatched but the provider outcome could not be determined.
	ErrOutcomeUnknown = errors.New("payment outcome unknown")
	// ErrOutcomeUncertain: the provider reported an outcome that could not be stored durably.
	ErrOutcomeUncertain = errors.New("payment outcome not persisted")
)

type TransitionError struct {
	TransactionID string
	From          TransactionStatus
	To            TransactionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transaction %s: cannot move from %s to %s", e.TransactionID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ConfigError is fatal: missing credentials or endpoints.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s is required", e.Field)
}

// TransportError covers network failures, timeouts and provider-side 5xx answers.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Temporary() bool { return true }

type GatewayErrorKind int

const (
	GatewayDeclined GatewayErrorKind = iota
	// GatewayAlreadyExecuted: execute was already accepted for this payment.
	GatewayAlreadyExecuted
	// GatewayExpired: the payment can no longer be executed.
	GatewayExpired
)

// GatewayError is a well formed provider answer with a non-success status code.
type GatewayError struct {
	Op      string
	Code    string
	Message string
	Kind    GatewayErrorKind
	// Raw is the provider body, kept for audit.
	Raw json.RawMessage
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *GatewayError) AlreadyExecuted() bool { return e.Kind == GatewayAlreadyExecuted }

func (e *GatewayError) Expired() bool { return e.Kind == GatewayExpired }

// PersistenceError wraps store failures so callers can tell them from gateway errors.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
