package usecase

import (
	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

func (uc *DefaultPaymentUsecase) recordTransitionMetrics(from domain.TransactionStatus, tx *domain.Transaction) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordTransition(string(from), string(tx.Status))

	amount, _ := tx.Amount.Float64()
	age := tx.UpdatedAt.Sub(tx.CreatedAt)
	switch tx.Status {
	case domain.TransactionCompleted:
		uc.Metrics.RecordCompleted(tx.Gateway, tx.Currency, amount, age)
	case domain.TransactionFailed, domain.TransactionCancelled:
		uc.Metrics.RecordFinished(string(tx.Status), age)
	case domain.TransactionRefunded:
		uc.Metrics.RecordRefunded(tx.Gateway, tx.Currency, amount)
	}
}

func (uc *DefaultPaymentUsecase) recordInitiated(tx *domain.Transaction) {
	if uc.Metrics == nil {
		return
	}
	amount, _ := tx.Amount.Float64()
	uc.Metrics.RecordInitiated(tx.Gateway, tx.Currency, amount)
	uc.Metrics.RecordTransition("", string(tx.Status))
}

func (uc *DefaultPaymentUsecase) recordInitiateFailed(kind string) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordInitiateFailed(uc.Gateway.Name(), kind)
}

func (uc *DefaultPaymentUsecase) recordReconciled(outcome string) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordReconciled(outcome)
}

func (uc *DefaultPaymentUsecase) recordError(op, kind string) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordError(op, kind)
}

// errorKind names the error class for metrics and attempt logs.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case domain.IsTransportError(err):
		return "transport"
	default:
		if _, ok := domain.AsGatewayError(err); ok {
			return "gateway"
		}
		return "internal"
	}
}
