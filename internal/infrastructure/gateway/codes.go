package gateway

import (
	"strings"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

const (
	codeSuccess = "0000"

	CodeInsufficientBalance = "2001"
	CodeInvalidPaymentState = "2056"
	CodeAlreadyCompleted    = "2062"
	CodeExecuteCalledBefore = "2117"
	CodePaymentExpired      = "2116"
)

const (
	checkoutMode = "0011"
	intentSale   = "sale"
)

func classify(code string) domain.GatewayErrorKind {
	switch code {
	case CodeAlreadyCompleted, CodeExecuteCalledBefore:
		return domain.GatewayAlreadyExecuted
	case CodeInvalidPaymentState, CodePaymentExpired:
		return domain.GatewayExpired
	default:
		return domain.GatewayDeclined
	}
}

func outcomeOf(transactionStatus string) domain.ProviderOutcome {
	switch strings.ToLower(strings.TrimSpace(transactionStatus)) {
	case "completed":
		return domain.OutcomeCompleted
	case "initiated":
		return domain.OutcomeInitiated
	case "expired", "declined", "cancelled", "canceled", "failed", "failure":
		return domain.OutcomeFailed
	default:
		return domain.OutcomePending
	}
}
