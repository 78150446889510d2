package usecase

import (
	"context"
	"fmt"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	paymentdto "github.com/LavaJover/shvark-payment-service/internal/usecase/dto/payment"
	"go.uber.org/zap"
)

// Refund returns the full amount of a COMPLETED transaction. Any other status is rejected
// before the provider or the store is touched.
func (uc *DefaultPaymentUsecase) Refund(ctx context.Context, input *paymentdto.RefundInput) (*paymentdto.TransactionOutput, error) {
	tx, err := uc.TransactionRepo.GetTransactionByID(ctx, input.TransactionID)
	if err != nil {
		return nil, loadError("get transaction", err)
	}
	if tx.Status != domain.TransactionCompleted {
		return nil, fmt.Errorf("transaction %s in status %s: %w", tx.ID, tx.Status, domain.ErrNotRefundable)
	}

	refunded := tx.Clone()
	if err := refunded.ApplyRefund(input.Reason, input.ActorID, uc.now()); err != nil {
		return nil, err
	}

	err = uc.Refunder.Refund(ctx, domain.RefundRequest{
		TransactionID:     tx.ID,
		ProviderPaymentID: tx.ProviderPaymentID,
		ProviderTrxID:     tx.ProviderTrxID,
		Amount:            tx.Amount,
		Currency:          tx.Currency,
		Reason:            input.Reason,
	})
	if err != nil {
		uc.recordError("refund", errorKind(err))
		return nil, fmt.Errorf("refund transaction %s: %w", tx.ID, err)
	}

	out, err := uc.store(ctx, tx, refunded, input.Reason, nil)
	if err != nil {
		uc.Logger.Error("refund returned at provider but not recorded",
			zap.String("transaction_id", tx.ID),
			zap.String("actor_id", input.ActorID),
			zap.Error(err),
		)
		return nil, err
	}
	if out.Transaction != refunded {
		// another writer moved the transaction first
		return nil, fmt.Errorf("transaction %s in status %s: %w", tx.ID, out.Transaction.Status, domain.ErrNotRefundable)
	}
	return out, nil
}

// BookkeepingRefunder accepts every refund without contacting the provider.
// The money movement is settled outside this service.
type BookkeepingRefunder struct {
	logger *zap.Logger
}

func NewBookkeepingRefunder(logger *zap.Logger) *BookkeepingRefunder {
	return &BookkeepingRefunder{logger: logger}
}

func (r *BookkeepingRefunder) Refund(ctx context.Context, req domain.RefundRequest) error {
	r.logger.Info("refund recorded for manual settlement",
		zap.String("transaction_id", req.TransactionID),
		zap.String("trx_id", req.ProviderTrxID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("currency", req.Currency),
	)
	return nil
}
