package usecase

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// afterTransition runs the non-critical side effects of a stored transition.
func (uc *DefaultPaymentUsecase) afterTransition(ctx context.Context, from domain.TransactionStatus, tx *domain.Transaction, order *domain.Order, reason string) {
	uc.Logger.Info("transaction status changed",
		zap.String("transaction_id", tx.ID),
		zap.String("order_id", tx.OrderID),
		zap.String("payment_id", tx.ProviderPaymentID),
		zap.String("from", string(from)),
		zap.String("to", string(tx.Status)),
		zap.Int64("version", tx.Version),
	)
	uc.recordTransitionMetrics(from, tx)
	uc.publishEvent(ctx, from, tx, order, reason)
}

func (uc *DefaultPaymentUsecase) publishEvent(ctx context.Context, from domain.TransactionStatus, tx *domain.Transaction, order *domain.Order, reason string) {
	if uc.Publisher == nil {
		return
	}

	paymentStatus := domain.PaymentStatusFor(tx.Status)
	if order != nil && order.TransactionID == tx.ID {
		paymentStatus = order.PaymentStatus
	}
	if reason == "" {
		reason = tx.FailureReason
	}
	event := domain.PaymentEvent{
		EventID:           uuid.NewString(),
		TransactionID:     tx.ID,
		OrderID:           tx.OrderID,
		UserID:            tx.UserID,
		ProviderPaymentID: tx.ProviderPaymentID,
		ProviderTrxID:     tx.ProviderTrxID,
		OldStatus:         from,
		NewStatus:         tx.Status,
		PaymentStatus:     paymentStatus,
		Amount:            tx.Amount.StringFixed(2),
		Currency:          tx.Currency,
		Reason:            reason,
		OccurredAt:        tx.UpdatedAt,
	}

	// the transition is already durable, a cancelled request must not drop its event
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := uc.Publisher.PublishPaymentEvent(publishCtx, event); err != nil {
		uc.Logger.Warn("failed to publish payment event",
			zap.String("transaction_id", tx.ID),
			zap.String("status", string(tx.Status)),
			zap.Error(err),
		)
		uc.recordError("publish", "kafka")
	}
}
