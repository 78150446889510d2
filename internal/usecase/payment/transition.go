package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	paymentdto "github.com/LavaJover/shvark-payment-service/internal/usecase/dto/payment"
)

// Conflicts caused only by a concurrent order update are retried this many times.
const maxOrderRetries = 3

// providerView is the part of a provider answer the state machine consumes.
type providerView struct {
	Outcome           domain.ProviderOutcome
	TransactionStatus string
	TrxID             string
	ResponseKey       string
	Raw               json.RawMessage
}

func viewOfExecute(res *domain.ExecutePaymentResult) providerView {
	return providerView{
		Outcome:           res.Outcome,
		TransactionStatus: res.TransactionStatus,
		TrxID:             res.TrxID,
		ResponseKey:       domain.ResponseExecute,
		Raw:               res.Raw,
	}
}

func viewOfQuery(res *domain.QueryPaymentResult) providerView {
	return providerView{
		Outcome:           res.Outcome,
		TransactionStatus: res.TransactionStatus,
		TrxID:             res.TrxID,
		ResponseKey:       domain.ResponseQuery,
		Raw:               res.Raw,
	}
}

// nextState returns a copy of current moved to the provider's outcome.
// It returns nil when the provider has not settled the payment yet.
func (uc *DefaultPaymentUsecase) nextState(current *domain.Transaction, view providerView) (*domain.Transaction, error) {
	next := current.Clone()
	now := uc.now()

	switch view.Outcome {
	case domain.OutcomeCompleted:
		if err := next.Complete(view.TrxID, view.ResponseKey, view.Raw, now); err != nil {
			return nil, err
		}
	case domain.OutcomeFailed:
		reason := fmt.Sprintf("provider reported %s", view.TransactionStatus)
		if err := next.Fail(reason, view.ResponseKey, view.Raw, now); err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}
	return next, nil
}

// settle applies a final provider outcome to current. The returned output reflects the stored state,
// which may come from a concurrent writer that settled the same transaction first.
func (uc *DefaultPaymentUsecase) settle(ctx context.Context, current *domain.Transaction, view providerView) (*paymentdto.TransactionOutput, error) {
	next, err := uc.nextState(current, view)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, fmt.Errorf("transaction %s: provider status %q: %w", current.ID, view.TransactionStatus, domain.ErrOutcomeUnknown)
	}
	return uc.store(ctx, current, next, "", nil)
}

// store persists next and maps the write failure modes: a lost race resolves to the winner's state,
// any other failure leaves the provider outcome unrecorded.
func (uc *DefaultPaymentUsecase) store(ctx context.Context, current, next *domain.Transaction, reason string, mutate func(*domain.Order)) (*paymentdto.TransactionOutput, error) {
	order, err := uc.commit(ctx, current, next, reason, mutate)
	switch {
	case err == nil:
		return &paymentdto.TransactionOutput{Transaction: next, Order: order}, nil
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return uc.afterConflict(ctx, current.ID)
	default:
		uc.recordError("store", "persistence")
		return nil, fmt.Errorf("transaction %s: recording %s: %w: %w",
			current.ID, next.Status, domain.ErrOutcomeUncertain, &domain.PersistenceError{Op: "apply transition", Err: err})
	}
}

// commit writes next over the current snapshot together with the linked order.
// A conflict raised only by the order is retried with a freshly loaded order.
func (uc *DefaultPaymentUsecase) commit(ctx context.Context, current, next *domain.Transaction, reason string, mutate func(*domain.Order)) (*domain.Order, error) {
	for attempt := 0; ; attempt++ {
		order, err := uc.OrderRepo.GetOrderByID(ctx, next.OrderID)
		if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}

		var linked *domain.Order
		if order != nil && order.TransactionID == next.ID {
			linked = order.Clone()
			linked.SyncWith(next, next.UpdatedAt)
			if mutate != nil {
				mutate(linked)
			}
		}

		err = uc.TransactionRepo.ApplyTransition(ctx, domain.Transition{
			Transaction: next,
			FromStatus:  current.Status,
			FromVersion: current.Version,
			Order:       linked,
		})
		if err == nil {
			uc.afterTransition(ctx, current.Status, next, linked, reason)
			if linked != nil {
				return linked, nil
			}
			return order, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) || attempt >= maxOrderRetries {
			return nil, err
		}

		stored, getErr := uc.TransactionRepo.GetTransactionByID(ctx, current.ID)
		if getErr != nil || stored.Status != current.Status || stored.Version != current.Version {
			return nil, err
		}
	}
}

// afterConflict re-reads a transaction another writer moved first.
func (uc *DefaultPaymentUsecase) afterConflict(ctx context.Context, transactionID string) (*paymentdto.TransactionOutput, error) {
	stored, err := uc.TransactionRepo.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, loadError("reload transaction", err)
	}
	if stored.Status.IsTerminal() {
		return uc.output(ctx, stored), nil
	}
	return nil, fmt.Errorf("transaction %s is %s: %w", stored.ID, stored.Status, domain.ErrPaymentInProgress)
}

func loadError(op string, err error) error {
	if errors.Is(err, domain.ErrTransactionNotFound) || errors.Is(err, domain.ErrOrderNotFound) {
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
