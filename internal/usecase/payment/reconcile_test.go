package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	paymentdto "github.com/LavaJover/shvark-payment-service/internal/usecase/dto/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"order-2", "order-3", "order-4", "order-5"} {
		f.addOrder(id, "user-1", "100.00")
	}

	completed := f.initiate(t, "order-1", "user-1")
	initiated := f.initiate(t, "order-2", "user-1")
	cancelled := f.initiate(t, "order-3", "user-1")
	unreachable := f.initiate(t, "order-4", "user-1")
	expired := f.initiate(t, "order-5", "user-1")

	_, err := f.uc.CancelPayment(f.ctx, &paymentdto.CancelPaymentInput{PaymentID: cancelled.PaymentID})
	require.NoError(t, err)

	f.gateway.queryFn = func(paymentID string) (*domain.QueryPaymentResult, error) {
		switch paymentID {
		case completed.PaymentID:
			return queried(paymentID, "Completed", domain.OutcomeCompleted), nil
		case initiated.PaymentID:
			return queried(paymentID, "Initiated", domain.OutcomeInitiated), nil
		case expired.PaymentID:
			return queried(paymentID, "Expired", domain.OutcomeFailed), nil
		default:
			return nil, &domain.TransportError{Op: "query", Err: errors.New("connection refused")}
		}
	}

	result := f.uc.Reconcile(f.ctx, []string{
		completed.TransactionID,
		initiated.TransactionID,
		cancelled.TransactionID,
		unreachable.TransactionID,
		expired.TransactionID,
		"missing",
	})

	assert.Equal(t, 2, result.Resolved)
	assert.Equal(t, 1, result.StillPending)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 2)
	assert.True(t, domain.IsTransportError(result.Errors[unreachable.TransactionID]))
	assert.ErrorIs(t, result.Errors["missing"], domain.ErrTransactionNotFound)

	assert.Equal(t, domain.TransactionCompleted, f.transaction(t, completed.TransactionID).Status)
	assert.Equal(t, domain.PaymentCompleted, f.order(t, "order-1").PaymentStatus)
	assert.Equal(t, domain.TransactionPending, f.transaction(t, initiated.TransactionID).Status)
	assert.Equal(t, domain.TransactionPending, f.transaction(t, unreachable.TransactionID).Status)
	assert.Equal(t, domain.TransactionFailed, f.transaction(t, expired.TransactionID).Status)
	assert.Equal(t, domain.PaymentFailed, f.order(t, "order-5").PaymentStatus)

	_, executes, _ := f.gateway.counts()
	assert.Equal(t, 0, executes)
}

func TestReconcile_ResolvesAmbiguousExecute(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t, "order-1", "user-1")

	f.gateway.executeFn = func(paymentID string) (*domain.ExecutePaymentResult, error) {
		return nil, &domain.TransportError{Op: "execute", Err: errors.New("read timeout")}
	}
	f.gateway.queryFn = func(paymentID string) (*domain.QueryPaymentResult, error) {
		return queried(paymentID, "Pending Authorized", domain.OutcomePending), nil
	}
	_, err := f.uc.CompletePayment(f.ctx, &paymentdto.CompletePaymentInput{PaymentID: out.PaymentID})
	require.ErrorIs(t, err, domain.ErrOutcomeUnknown)

	f.gateway.queryFn = func(paymentID string) (*domain.QueryPaymentResult, error) {
		return queried(paymentID, "Completed", domain.OutcomeCompleted), nil
	}
	result := f.uc.Reconcile(f.ctx, []string{out.TransactionID})
	assert.Equal(t, 1, result.Resolved)

	tx := f.transaction(t, out.TransactionID)
	assert.Equal(t, domain.TransactionCompleted, tx.Status)
	assert.Equal(t, "AB12CD", tx.ProviderTrxID)

	_, executes, _ := f.gateway.counts()
	assert.Equal(t, 1, executes)
}

func TestReconcileStale(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t, "order-1", "user-1")

	result, err := f.uc.ReconcileStale(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Resolved)
	_, _, queries := f.gateway.counts()
	assert.Equal(t, 0, queries)

	f.clock.Advance(10 * time.Minute)

	result, err = f.uc.ReconcileStale(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Resolved)
	assert.Equal(t, domain.TransactionCompleted, f.transaction(t, out.TransactionID).Status)
}

func TestCompletePayment_RacesWithReconciliation(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t, "order-1", "user-1")

	started := make(chan struct{})
	release := make(chan struct{})
	f.gateway.executeFn = func(paymentID string) (*domain.ExecutePaymentResult, error) {
		close(started)
		<-release
		return executed(paymentID, "Completed", domain.OutcomeCompleted), nil
	}

	type completion struct {
		out *paymentdto.TransactionOutput
		err error
	}
	done := make(chan completion, 1)
	go func() {
		res, err := f.uc.CompletePayment(f.ctx, &paymentdto.CompletePaymentInput{PaymentID: out.PaymentID})
		done <- completion{res, err}
	}()

	<-started
	result := f.uc.Reconcile(f.ctx, []string{out.TransactionID})
	assert.Equal(t, 1, result.Resolved)
	close(release)

	c := <-done
	require.NoError(t, c.err)
	assert.Equal(t, domain.TransactionCompleted, c.out.Transaction.Status)

	stored := f.transaction(t, out.TransactionID)
	assert.Equal(t, domain.TransactionCompleted, stored.Status)
	assert.Equal(t, int64(3), stored.Version)

	completions := 0
	for _, status := range f.events.statuses(out.TransactionID) {
		if status == domain.TransactionCompleted {
			completions++
		}
	}
	assert.Equal(t, 1, completions)
}
