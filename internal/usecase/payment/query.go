package usecase

import (
	"context"

	paymentdto "github.com/LavaJover/shvark-payment-service/internal/usecase/dto/payment"
	"go.uber.org/zap"
)

// QueryPaymentStatus reports the stored transaction next to the provider's current view.
// It never changes state; a provider failure is reported in the output, not as an error.
func (uc *DefaultPaymentUsecase) QueryPaymentStatus(ctx context.Context, input *paymentdto.QueryPaymentInput) (*paymentdto.PaymentStatusOutput, error) {
	tx, err := uc.lookupPayment(ctx, input.PaymentID, input.UserID)
	if err != nil {
		return nil, err
	}

	out := &paymentdto.PaymentStatusOutput{Transaction: tx}
	res, err := uc.Gateway.QueryPayment(ctx, tx.ProviderPaymentID)
	if err != nil {
		uc.Logger.Warn("failed to query provider status",
			zap.String("transaction_id", tx.ID),
			zap.String("payment_id", tx.ProviderPaymentID),
			zap.Error(err),
		)
		out.ProviderError = err.Error()
		return out, nil
	}
	out.ProviderStatus = res.TransactionStatus
	out.ProviderOutcome = res.Outcome
	out.ProviderTrxID = res.TrxID
	return out, nil
}
