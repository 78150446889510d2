package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, msgs ...domain.Message) error {
	args := m.Called(ctx, topic, msgs)
	return args.Error(0)
}

func TestPaymentEventPublisher_PublishPaymentEvent(t *testing.T) {
	ctx := context.Background()
	port := new(mockPublisher)
	publisher := NewPaymentEventPublisher(port, "payment-events")

	event := domain.PaymentEvent{
		EventID:           "evt-1",
		TransactionID:     "tx-1",
		OrderID:           "order-1",
		UserID:            "user-1",
		ProviderPaymentID: "TR1",
		OldStatus:         domain.TransactionProcessing,
		NewStatus:         domain.TransactionCompleted,
		PaymentStatus:     domain.PaymentCompleted,
		Amount:            "450.00",
		Currency:          "BDT",
		OccurredAt:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	port.On("Publish", ctx, "payment-events", mock.MatchedBy(func(msgs []domain.Message) bool {
		if len(msgs) != 1 || string(msgs[0].Key) != "order-1" {
			return false
		}
		var got domain.PaymentEvent
		if err := json.Unmarshal(msgs[0].Value, &got); err != nil {
			return false
		}
		return got.NewStatus == domain.TransactionCompleted && got.Amount == "450.00"
	})).Return(nil).Once()

	require.NoError(t, publisher.PublishPaymentEvent(ctx, event))
	port.AssertExpectations(t)
}

func TestPaymentEventPublisher_PropagatesError(t *testing.T) {
	ctx := context.Background()
	port := new(mockPublisher)
	publisher := NewPaymentEventPublisher(port, "payment-events")

	port.On("Publish", ctx, "payment-events", mock.Anything).Return(assert.AnError).Once()

	err := publisher.PublishPaymentEvent(ctx, domain.PaymentEvent{OrderID: "order-1"})
	require.ErrorIs(t, err, assert.AnError)
}
