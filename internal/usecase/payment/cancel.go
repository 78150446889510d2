package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	paymentdto "github.com/LavaJover/shvark-payment-service/internal/usecase/dto/payment"
	"go.uber.org/zap"
)

// CancelPayment abandons a PENDING payment. The order stays payable unless CancelOrder is set.
func (uc *DefaultPaymentUsecase) CancelPayment(ctx context.Context, input *paymentdto.CancelPaymentInput) (*paymentdto.TransactionOutput, error) {
	if input.PaymentID == "" && input.CancelOrder {
		return uc.cancelOrder(ctx, input)
	}

	tx, err := uc.cancellable(ctx, input)
	if err != nil {
		return nil, err
	}
	return uc.cancelTransaction(ctx, tx, input)
}

func (uc *DefaultPaymentUsecase) cancelTransaction(ctx context.Context, tx *domain.Transaction, input *paymentdto.CancelPaymentInput) (*paymentdto.TransactionOutput, error) {
	switch tx.Status {
	case domain.TransactionCancelled:
		return uc.output(ctx, tx), nil
	case domain.TransactionProcessing:
		return nil, fmt.Errorf("transaction %s: %w", tx.ID, domain.ErrPaymentInProgress)
	}

	if input.ConfirmWithProvider && tx.Status == domain.TransactionPending {
		res, err := uc.Gateway.QueryPayment(ctx, tx.ProviderPaymentID)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w: %w", tx.ID, domain.ErrOutcomeUnknown, err)
		}
		switch {
		case res.Outcome.IsFinal():
			// the provider's own outcome wins over the redirect
			return uc.settle(ctx, tx, viewOfQuery(res))
		case res.Outcome != domain.OutcomeInitiated:
			return nil, fmt.Errorf("transaction %s: provider status %q: %w", tx.ID, res.TransactionStatus, domain.ErrPaymentInProgress)
		}
	}

	cancelled := tx.Clone()
	if err := cancelled.Cancel(uc.now()); err != nil {
		return nil, err
	}

	var mutate func(*domain.Order)
	if input.CancelOrder {
		mutate = func(o *domain.Order) { o.Status = domain.StatusCanceled }
	}
	return uc.store(ctx, tx, cancelled, input.Reason, mutate)
}

// cancelOrder cancels an order together with its pending payment. An order whose payment
// failed, was cancelled or never started is cancelled on its own. A paid or running payment blocks it.
func (uc *DefaultPaymentUsecase) cancelOrder(ctx context.Context, input *paymentdto.CancelPaymentInput) (*paymentdto.TransactionOutput, error) {
	for attempt := 0; ; attempt++ {
		order, err := uc.OrderRepo.GetOrderByID(ctx, input.OrderID)
		if err != nil {
			return nil, loadError("get order", err)
		}

		var tx *domain.Transaction
		if order.TransactionID != "" {
			tx, err = uc.TransactionRepo.GetTransactionByID(ctx, order.TransactionID)
			switch {
			case errors.Is(err, domain.ErrTransactionNotFound):
				tx = nil
			case err != nil:
				return nil, loadError("get transaction", err)
			}
		}

		if tx != nil {
			switch tx.Status {
			case domain.TransactionPending, domain.TransactionProcessing:
				return uc.cancelTransaction(ctx, tx, input)
			case domain.TransactionCompleted, domain.TransactionRefunded:
				return nil, fmt.Errorf("order %s: transaction %s is %s: %w", order.ID, tx.ID, tx.Status, domain.ErrAlreadyPaid)
			}
		}

		if order.Status == domain.StatusCanceled {
			return &paymentdto.TransactionOutput{Transaction: tx, Order: order}, nil
		}

		now := uc.now()
		err = uc.OrderRepo.CancelOrder(ctx, order.ID, order.Version, now)
		if err == nil {
			cancelled := order.Clone()
			cancelled.Status = domain.StatusCanceled
			cancelled.Version++
			cancelled.UpdatedAt = now
			uc.Logger.Info("order cancelled without pending payment",
				zap.String("order_id", order.ID),
				zap.String("transaction_id", order.TransactionID),
				zap.String("reason", input.Reason),
			)
			return &paymentdto.TransactionOutput{Transaction: tx, Order: cancelled}, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return nil, loadError("cancel order", err)
		}
		if attempt >= maxOrderRetries {
			return nil, fmt.Errorf("order %s: %w", order.ID, err)
		}
	}
}

func (uc *DefaultPaymentUsecase) cancellable(ctx context.Context, input *paymentdto.CancelPaymentInput) (*domain.Transaction, error) {
	if input.PaymentID != "" {
		return uc.lookupPayment(ctx, input.PaymentID, "")
	}

	order, err := uc.OrderRepo.GetOrderByID(ctx, input.OrderID)
	if err != nil {
		return nil, loadError("get order", err)
	}
	if order.TransactionID == "" {
		return nil, fmt.Errorf("order %s has no payment: %w", order.ID, domain.ErrTransactionNotFound)
	}
	tx, err := uc.TransactionRepo.GetTransactionByID(ctx, order.TransactionID)
	if err != nil {
		return nil, loadError("get transaction", err)
	}
	return tx, nil
}
