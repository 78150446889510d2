package background

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	paymentdto "github.com/LavaJover/shvark-payment-service/internal/usecase/dto/payment"
	usecase "github.com/LavaJover/shvark-payment-service/internal/usecase/payment"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Order event types consumed from the order service topic.
const (
	OrderCreated   = "order.created"
	OrderCancelled = "order.cancelled"
)

type Subscriber interface {
	Subscribe(ctx context.Context, topic, groupID string) (<-chan domain.Message, error)
}

type Config struct {
	ReconcileEnabled  bool
	ReconcileInterval time.Duration
	OrderTopic        string
	GroupID           string
}

type BackgroundTasks struct {
	PaymentUsecase usecase.PaymentUsecase
	Orders         domain.OrderWriter
	Subscriber     Subscriber
	Config         Config
	Logger         *zap.Logger
}

func NewBackgroundTasks(paymentUC usecase.PaymentUsecase, orders domain.OrderWriter, sub Subscriber, cfg Config, logger *zap.Logger) *BackgroundTasks {
	return &BackgroundTasks{
		PaymentUsecase: paymentUC,
		Orders:         orders,
		Subscriber:     sub,
		Config:         cfg,
		Logger:         logger,
	}
}

func (bt *BackgroundTasks) StartAll(ctx context.Context) error {
	if bt.Config.ReconcileEnabled {
		go bt.startReconciliation(ctx)
	}
	if bt.Subscriber == nil {
		return nil
	}

	messages, err := bt.Subscriber.Subscribe(ctx, bt.Config.OrderTopic, bt.Config.GroupID)
	if err != nil {
		return err
	}
	go bt.consumeOrderEvents(ctx, messages)
	return nil
}

func (bt *BackgroundTasks) startReconciliation(ctx context.Context) {
	ticker := time.NewTicker(bt.Config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := bt.PaymentUsecase.ReconcileStale(ctx)
			if err != nil {
				bt.Logger.Error("reconciliation sweep failed", zap.Error(err))
				continue
			}
			for id, err := range result.Errors {
				bt.Logger.Warn("transaction not reconciled", zap.String("transaction_id", id), zap.Error(err))
			}
		}
	}
}

func (bt *BackgroundTasks) consumeOrderEvents(ctx context.Context, messages <-chan domain.Message) {
	for msg := range messages {
		if err := bt.HandleOrderEvent(ctx, msg); err != nil {
			bt.Logger.Warn("failed to handle order event", zap.ByteString("key", msg.Key), zap.Error(err))
		}
	}
}

type orderEvent struct {
	EventType     string          `json:"event_type"`
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
	Reason        string          `json:"reason"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// HandleOrderEvent mirrors new orders. A cancelled order is cancelled locally together
// with its pending payment, so it can no longer be charged.
// Unknown event types are ignored.
func (bt *BackgroundTasks) HandleOrderEvent(ctx context.Context, msg domain.Message) error {
	var event orderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return err
	}

	switch event.EventType {
	case OrderCreated:
		return bt.Orders.CreateOrder(ctx, &domain.Order{
			ID:            event.OrderID,
			UserID:        event.UserID,
			TotalAmount:   event.Amount,
			Currency:      event.Currency,
			PaymentMethod: domain.PaymentMethod(event.PaymentMethod),
			PaymentStatus: domain.PaymentPending,
			Status:        domain.StatusPending,
			CreatedAt:     event.OccurredAt,
			UpdatedAt:     event.OccurredAt,
		})

	case OrderCancelled:
		reason := event.Reason
		if reason == "" {
			reason = "order cancelled"
		}
		_, err := bt.PaymentUsecase.CancelPayment(ctx, &paymentdto.CancelPaymentInput{
			OrderID:     event.OrderID,
			Reason:      reason,
			CancelOrder: true,
		})
		return err
	}
	return nil
}
