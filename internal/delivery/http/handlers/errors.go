package handlers

import (
	"errors"
	"net/http"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

// statusFor maps use case errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOrderNotPayable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrPaymentInProgress),
		errors.Is(err, domain.ErrNotRefundable),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidTransaction):
		return http.StatusBadRequest
	// the payment may still settle, the client polls the status
	case errors.Is(err, domain.ErrOutcomeUnknown):
		return http.StatusAccepted
	case errors.Is(err, domain.ErrOutcomeUncertain):
		return http.StatusInternalServerError
	}

	if _, ok := domain.AsGatewayError(err); ok {
		return http.StatusPaymentRequired
	}
	if domain.IsTransportError(err) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	if gwErr, ok := domain.AsGatewayError(err); ok {
		return gwErr.Code
	}
	return ""
}
