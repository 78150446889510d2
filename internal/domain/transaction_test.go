package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestTransaction(t *testing.T) *Transaction {
	t.Helper()
	tx, err := NewTransaction(NewTransactionParams{
		OrderID:           "order-1",
		UserID:            "user-1",
		Amount:            decimal.RequireFromString("450.00"),
		Currency:          "BDT",
		PaymentMethod:     MethodMobileWallet,
		Gateway:           "bkash",
		ProviderPaymentID: "TR0011",
		CreateResponse:    json.RawMessage(`{"statusCode":"0000"}`),
		Now:               testNow,
	})
	require.NoError(t, err)
	return tx
}

func TestNewTransaction(t *testing.T) {
	tx := newTestTransaction(t)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, TransactionPending, tx.Status)
	assert.Contains(t, tx.GatewayResponse, ResponseCreate)
	assert.NoError(t, tx.Validate())

	_, err := NewTransaction(NewTransactionParams{OrderID: "o", UserID: "u", Amount: decimal.Zero, ProviderPaymentID: "TR"})
	assert.ErrorIs(t, err, ErrInvalidTransaction)

	_, err = NewTransaction(NewTransactionParams{OrderID: "o", UserID: "u", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrInvalidTransaction)

	_, err = NewTransaction(NewTransactionParams{UserID: "u", Amount: decimal.NewFromInt(1), ProviderPaymentID: "TR"})
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestCanTransition(t *testing.T) {
	all := []TransactionStatus{
		TransactionPending, TransactionProcessing, TransactionCompleted,
		TransactionFailed, TransactionRefunded, TransactionCancelled,
	}
	allowed := map[[2]TransactionStatus]bool{
		{TransactionPending, TransactionProcessing}:   true,
		{TransactionPending, TransactionCompleted}:    true,
		{TransactionPending, TransactionFailed}:       true,
		{TransactionPending, TransactionCancelled}:    true,
		{TransactionProcessing, TransactionCompleted}: true,
		{TransactionProcessing, TransactionFailed}:    true,
		{TransactionCompleted, TransactionRefunded}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]TransactionStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransaction_Lifecycle(t *testing.T) {
	tx := newTestTransaction(t)
	later := testNow.Add(time.Minute)

	require.NoError(t, tx.MarkProcessing(later))
	assert.Equal(t, TransactionProcessing, tx.Status)
	assert.Equal(t, later, tx.UpdatedAt)

	require.NoError(t, tx.Complete("AB12CD", ResponseExecute, json.RawMessage(`{"transactionStatus":"Completed"}`), later))
	assert.Equal(t, "AB12CD", tx.ProviderTrxID)
	assert.Contains(t, tx.GatewayResponse, ResponseExecute)

	err := tx.Fail("late failure", ResponseQuery, nil, later)
	var trErr *TransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, TransactionCompleted, trErr.From)
	assert.Equal(t, TransactionFailed, trErr.To)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, TransactionCompleted, tx.Status)

	require.NoError(t, tx.ApplyRefund("customer request", "admin-1", later))
	require.NotNil(t, tx.Refund)
	assert.True(t, tx.Amount.Equal(tx.Refund.Amount))
	assert.NoError(t, tx.Validate())

	err = tx.ApplyRefund("again", "admin-1", later)
	assert.ErrorIs(t, err, ErrNotRefundable)
}

func TestTransaction_FailRecordsReason(t *testing.T) {
	tx := newTestTransaction(t)
	require.NoError(t, tx.Fail("", ResponseExecute, json.RawMessage(`{"statusCode":"2001"}`), testNow))
	assert.Equal(t, "payment failed", tx.FailureReason)
	assert.NoError(t, tx.Validate())
}

func TestTransaction_CloneIsDeep(t *testing.T) {
	tx := newTestTransaction(t)
	clone := tx.Clone()

	clone.GatewayResponse[ResponseCreate][0] = 'X'
	clone.GatewayResponse[ResponseQuery] = json.RawMessage(`{}`)
	require.NoError(t, clone.Cancel(testNow))

	assert.Equal(t, TransactionPending, tx.Status)
	assert.Equal(t, byte('{'), tx.GatewayResponse[ResponseCreate][0])
	assert.NotContains(t, tx.GatewayResponse, ResponseQuery)
}

func TestTransaction_Validate(t *testing.T) {
	tx := newTestTransaction(t)
	tx.FailureReason = "oops"
	assert.ErrorIs(t, tx.Validate(), ErrInvalidTransaction)

	tx = newTestTransaction(t)
	tx.Status = TransactionRefunded
	assert.ErrorIs(t, tx.Validate(), ErrInvalidTransaction)

	tx = newTestTransaction(t)
	tx.Amount = decimal.NewFromInt(-1)
	assert.ErrorIs(t, tx.Validate(), ErrInvalidTransaction)
}
