package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	paymentdto "github.com/LavaJover/shvark-payment-service/internal/usecase/dto/payment"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	reconcileResolved = "resolved"
	reconcilePending  = "pending"
	reconcileSkipped  = "skipped"
	reconcileError    = "error"
)

// Reconcile settles the given transactions from the provider's status. It never executes a
// payment. One failing transaction does not stop the others.
func (uc *DefaultPaymentUsecase) Reconcile(ctx context.Context, transactionIDs []string) *paymentdto.ReconcileResult {
	result := &paymentdto.ReconcileResult{Errors: map[string]error{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.Options.Concurrency)
	for _, id := range transactionIDs {
		id := id
		g.Go(func() error {
			outcome, err := uc.reconcileOne(gctx, id)
			uc.recordReconciled(outcome)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case reconcileResolved:
				result.Resolved++
			case reconcilePending:
				result.StillPending++
			case reconcileSkipped:
				result.Skipped++
			default:
				result.Errors[id] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	uc.Logger.Info("reconciliation finished",
		zap.Int("total", len(transactionIDs)),
		zap.Int("resolved", result.Resolved),
		zap.Int("still_pending", result.StillPending),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

// ReconcileStale reconciles PENDING and PROCESSING transactions untouched for longer than StaleAfter.
func (uc *DefaultPaymentUsecase) ReconcileStale(ctx context.Context) (*paymentdto.ReconcileResult, error) {
	stale, err := uc.TransactionRepo.FindStaleTransactions(ctx, uc.now().Add(-uc.Options.StaleAfter), uc.Options.BatchSize)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "find stale transactions", Err: err}
	}
	if len(stale) == 0 {
		return &paymentdto.ReconcileResult{Errors: map[string]error{}}, nil
	}

	ids := make([]string, 0, len(stale))
	for _, tx := range stale {
		ids = append(ids, tx.ID)
	}
	return uc.Reconcile(ctx, ids), nil
}

func (uc *DefaultPaymentUsecase) reconcileOne(ctx context.Context, transactionID string) (string, error) {
	tx, err := uc.TransactionRepo.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return reconcileError, loadError("get transaction", err)
	}
	if tx.Status.IsTerminal() {
		return reconcileSkipped, nil
	}

	res, err := uc.Gateway.QueryPayment(ctx, tx.ProviderPaymentID)
	if err != nil {
		uc.Logger.Warn("reconciliation query failed",
			zap.String("transaction_id", tx.ID),
			zap.String("payment_id", tx.ProviderPaymentID),
			zap.Error(err),
		)
		return reconcileError, fmt.Errorf("query payment %s: %w", tx.ProviderPaymentID, err)
	}
	if !res.Outcome.IsFinal() {
		return reconcilePending, nil
	}

	out, err := uc.settle(ctx, tx, viewOfQuery(res))
	switch {
	case errors.Is(err, domain.ErrPaymentInProgress):
		return reconcilePending, nil
	case err != nil:
		return reconcileError, err
	}
	uc.Logger.Info("transaction reconciled",
		zap.String("transaction_id", tx.ID),
		zap.String("status", string(out.Transaction.Status)),
	)
	return reconcileResolved, nil
}
