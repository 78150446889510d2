package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	paymentdto "github.com/LavaJover/shvark-payment-service/internal/usecase/dto/payment"
	"go.uber.org/zap"
)

// CompletePayment executes a payment the user approved at the provider. It is safe to call
// repeatedly: a settled transaction is returned as stored and the provider is not contacted again.
func (uc *DefaultPaymentUsecase) CompletePayment(ctx context.Context, input *paymentdto.CompletePaymentInput) (*paymentdto.TransactionOutput, error) {
	tx, err := uc.lookupPayment(ctx, input.PaymentID, input.UserID)
	if err != nil {
		return nil, err
	}

	switch tx.Status {
	case domain.TransactionPending:
		processing := tx.Clone()
		if err := processing.MarkProcessing(uc.now()); err != nil {
			return nil, err
		}
		if _, err := uc.commit(ctx, tx, processing, "", nil); err != nil {
			if errors.Is(err, domain.ErrConcurrentUpdate) {
				return uc.afterConflict(ctx, tx.ID)
			}
			return nil, &domain.PersistenceError{Op: "mark processing", Err: err}
		}
		return uc.execute(ctx, processing)

	case domain.TransactionProcessing:
		// an earlier execute may have reached the provider, its answer decides
		res, err := uc.Gateway.QueryPayment(ctx, tx.ProviderPaymentID)
		if err != nil {
			uc.Logger.Warn("failed to query payment in progress",
				zap.String("transaction_id", tx.ID),
				zap.String("payment_id", tx.ProviderPaymentID),
				zap.Error(err),
			)
			return nil, fmt.Errorf("transaction %s: %w: %w", tx.ID, domain.ErrOutcomeUnknown, err)
		}
		switch {
		case res.Outcome == domain.OutcomeInitiated:
			return uc.execute(ctx, tx)
		case res.Outcome.IsFinal():
			return uc.settle(ctx, tx, viewOfQuery(res))
		default:
			return nil, fmt.Errorf("transaction %s: provider status %q: %w", tx.ID, res.TransactionStatus, domain.ErrOutcomeUnknown)
		}

	default:
		return uc.output(ctx, tx), nil
	}
}

// execute dispatches execute for a PROCESSING transaction and records the result.
func (uc *DefaultPaymentUsecase) execute(ctx context.Context, tx *domain.Transaction) (*paymentdto.TransactionOutput, error) {
	res, err := uc.Gateway.ExecutePayment(ctx, tx.ProviderPaymentID)
	if err == nil {
		if res.Outcome.IsFinal() {
			return uc.settle(ctx, tx, viewOfExecute(res))
		}
		return uc.resolve(ctx, tx, fmt.Errorf("execute returned status %q", res.TransactionStatus))
	}

	if gwErr, ok := domain.AsGatewayError(err); ok {
		if gwErr.AlreadyExecuted() {
			return uc.resolve(ctx, tx, err)
		}
		failed := tx.Clone()
		if ferr := failed.Fail(gwErr.Message, domain.ResponseExecute, gwErr.Raw, uc.now()); ferr != nil {
			return nil, ferr
		}
		out, serr := uc.store(ctx, tx, failed, "", nil)
		if serr != nil {
			return nil, serr
		}
		if out.Transaction.Status != domain.TransactionFailed {
			// a concurrent writer settled it differently
			return out, nil
		}
		return out, fmt.Errorf("transaction %s declined: %w", tx.ID, err)
	}

	uc.Logger.Warn("execute payment outcome unknown, querying provider",
		zap.String("transaction_id", tx.ID),
		zap.String("payment_id", tx.ProviderPaymentID),
		zap.Error(err),
	)
	return uc.resolve(ctx, tx, err)
}

// resolve asks the provider for the truth after an ambiguous execute. The transaction stays
// PROCESSING when the provider has not settled it, reconciliation finishes it later.
func (uc *DefaultPaymentUsecase) resolve(ctx context.Context, tx *domain.Transaction, cause error) (*paymentdto.TransactionOutput, error) {
	res, err := uc.Gateway.QueryPayment(ctx, tx.ProviderPaymentID)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w: %w", tx.ID, domain.ErrOutcomeUnknown, errors.Join(cause, err))
	}
	if !res.Outcome.IsFinal() {
		return nil, fmt.Errorf("transaction %s: provider status %q: %w: %w", tx.ID, res.TransactionStatus, domain.ErrOutcomeUnknown, cause)
	}
	return uc.settle(ctx, tx, viewOfQuery(res))
}

// lookupPayment finds the transaction of a provider payment. userID, when set, must own it.
func (uc *DefaultPaymentUsecase) lookupPayment(ctx context.Context, paymentID, userID string) (*domain.Transaction, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("empty payment id: %w", domain.ErrTransactionNotFound)
	}
	tx, err := uc.TransactionRepo.GetTransactionByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, loadError("get transaction by payment id", err)
	}
	if userID != "" && tx.UserID != userID {
		return nil, fmt.Errorf("payment %s: %w", paymentID, domain.ErrTransactionNotFound)
	}
	return tx, nil
}
