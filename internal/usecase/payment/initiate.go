package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	paymentdto "github.com/LavaJover/shvark-payment-service/internal/usecase/dto/payment"
	"go.uber.org/zap"
)

func (uc *DefaultPaymentUsecase) InitiatePayment(ctx context.Context, input *paymentdto.InitiatePaymentInput) (*paymentdto.InitiatePaymentOutput, error) {
	order, err := uc.OrderRepo.GetOrderByID(ctx, input.OrderID)
	if err != nil {
		return nil, loadError("get order", err)
	}
	if order.UserID != input.UserID {
		// a foreign order is indistinguishable from a missing one
		return nil, fmt.Errorf("order %s: %w", input.OrderID, domain.ErrOrderNotFound)
	}
	if err := order.CheckPayable(); err != nil {
		return nil, fmt.Errorf("order %s: %w", order.ID, err)
	}
	if order.Currency != "" && order.Currency != uc.Options.Currency {
		return nil, fmt.Errorf("order %s currency %s: %w", order.ID, order.Currency, domain.ErrOrderNotPayable)
	}

	superseded, err := uc.supersedable(ctx, order)
	if err != nil {
		return nil, err
	}

	res, err := uc.Gateway.CreatePayment(ctx, domain.CreatePaymentRequest{
		Amount:         order.TotalAmount,
		OrderID:        order.ID,
		PayerReference: order.UserID,
		CallbackURL:    uc.Options.CallbackURL,
	})
	if err != nil {
		uc.logAttemptFailed(ctx, order, err)
		return nil, fmt.Errorf("create payment for order %s: %w", order.ID, err)
	}

	now := uc.now()
	tx, err := domain.NewTransaction(domain.NewTransactionParams{
		OrderID:           order.ID,
		UserID:            order.UserID,
		Amount:            order.TotalAmount,
		Currency:          uc.Options.Currency,
		PaymentMethod:     domain.MethodMobileWallet,
		Gateway:           uc.Gateway.Name(),
		ProviderPaymentID: res.PaymentID,
		CreateResponse:    res.Raw,
		Now:               now,
	})
	if err != nil {
		return nil, err
	}

	linked := order.Clone()
	linked.TransactionID = tx.ID
	linked.PaymentStatus = domain.PaymentPending
	linked.UpdatedAt = now

	var supersede *domain.Transition
	var supersededFrom domain.TransactionStatus
	if superseded != nil {
		cancelled := superseded.Clone()
		if err := cancelled.Cancel(now); err != nil {
			return nil, err
		}
		supersededFrom = superseded.Status
		supersede = &domain.Transition{
			Transaction: cancelled,
			FromStatus:  superseded.Status,
			FromVersion: superseded.Version,
		}
	}

	if err := uc.TransactionRepo.CreateTransaction(ctx, tx, linked, supersede); err != nil {
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			return nil, fmt.Errorf("order %s changed while creating payment: %w", order.ID, domain.ErrPaymentInProgress)
		}
		uc.recordError("initiate", "persistence")
		uc.Logger.Error("failed to store created payment",
			zap.String("order_id", order.ID),
			zap.String("payment_id", res.PaymentID),
			zap.Error(err),
		)
		return nil, &domain.PersistenceError{Op: "create transaction", Err: err}
	}

	if supersede != nil {
		uc.afterTransition(ctx, supersededFrom, supersede.Transaction, nil, "superseded by a new payment")
	}
	uc.Logger.Info("payment initiated",
		zap.String("transaction_id", tx.ID),
		zap.String("order_id", tx.OrderID),
		zap.String("payment_id", tx.ProviderPaymentID),
		zap.String("amount", tx.Amount.StringFixed(2)),
		zap.String("currency", tx.Currency),
	)
	uc.recordInitiated(tx)
	uc.publishEvent(ctx, "", tx, linked, "")

	return &paymentdto.InitiatePaymentOutput{
		TransactionID: tx.ID,
		PaymentID:     tx.ProviderPaymentID,
		RedirectURL:   res.RedirectURL,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
	}, nil
}

// supersedable returns the PENDING transaction a new payment of order replaces, if any.
func (uc *DefaultPaymentUsecase) supersedable(ctx context.Context, order *domain.Order) (*domain.Transaction, error) {
	if order.TransactionID == "" {
		return nil, nil
	}
	previous, err := uc.TransactionRepo.GetTransactionByID(ctx, order.TransactionID)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, loadError("get linked transaction", err)
	}

	switch previous.Status {
	case domain.TransactionPending:
		return previous, nil
	case domain.TransactionProcessing:
		return nil, fmt.Errorf("order %s: transaction %s: %w", order.ID, previous.ID, domain.ErrPaymentInProgress)
	case domain.TransactionCompleted, domain.TransactionRefunded:
		return nil, fmt.Errorf("order %s: %w", order.ID, domain.ErrAlreadyPaid)
	}
	return nil, nil
}

func (uc *DefaultPaymentUsecase) logAttemptFailed(ctx context.Context, order *domain.Order, err error) {
	kind := errorKind(err)
	uc.recordInitiateFailed(kind)

	attempt := domain.PaymentAttempt{
		RequestID: uc.generateID(),
		OrderID:   order.ID,
		UserID:    order.UserID,
		Amount:    order.TotalAmount,
		Currency:  uc.Options.Currency,
		Gateway:   uc.Gateway.Name(),
		ErrorKind: kind,
		Message:   err.Error(),
		Timestamp: uc.now(),
	}
	if gwErr, ok := domain.AsGatewayError(err); ok {
		attempt.Code = gwErr.Code
		attempt.Message = gwErr.Message
	}

	uc.Logger.Warn("create payment failed",
		zap.String("request_id", attempt.RequestID),
		zap.String("order_id", order.ID),
		zap.String("kind", kind),
		zap.Error(err),
	)
	if uc.AttemptLogger == nil {
		return
	}
	if logErr := uc.AttemptLogger.LogAttemptFailed(context.WithoutCancel(ctx), attempt); logErr != nil {
		uc.Logger.Warn("failed to record payment attempt", zap.String("request_id", attempt.RequestID), zap.Error(logErr))
	}
}
