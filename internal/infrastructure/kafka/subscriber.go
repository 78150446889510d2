package kafka

import (
	"context"
	"errors"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type DefaultKafkaSubscriber struct {
	brokers []string
	logger  *zap.Logger
}

func NewDefaultKafkaSubscriber(brokers []string, logger *zap.Logger) *DefaultKafkaSubscriber {
	return &DefaultKafkaSubscriber{brokers: brokers, logger: logger}
}

// Subscribe streams messages of topic until ctx is done; the channel is closed afterwards.
func (k *DefaultKafkaSubscriber) Subscribe(ctx context.Context, topic, groupID string) (<-chan domain.Message, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: k.brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	out := make(chan domain.Message)
	go func() {
		defer close(out)
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					k.logger.Error("kafka read failed", zap.String("topic", topic), zap.Error(err))
				}
				return
			}
			select {
			case out <- domain.Message{Key: m.Key, Value: m.Value}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
