package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/segmentio/kafka-go"
)

type DefaultKafkaPublisher struct {
	writer *kafka.Writer
}

func NewDefaultKafkaPublisher(brokers []string) *DefaultKafkaPublisher {
	return &DefaultKafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

func (k *DefaultKafkaPublisher) Publish(ctx context.Context, topic string, msgs ...domain.Message) error {
	km := make([]kafka.Message, 0, len(msgs))
	now := time.Now()
	for _, m := range msgs {
		km = append(km, kafka.Message{
			Key:   m.Key,
			Value: m.Value,
			Time:  now,
			Topic: topic,
		})
	}

	return k.writer.WriteMessages(ctx, km...)
}

func (k *DefaultKafkaPublisher) Close() error {
	return k.writer.Close()
}

// PaymentEventPublisher writes payment events to one topic, keyed by order id
// so the events of an order stay in one partition.
type PaymentEventPublisher struct {
	publisher domain.PublisherPort
	topic     string
}

func NewPaymentEventPublisher(publisher domain.PublisherPort, topic string) *PaymentEventPublisher {
	return &PaymentEventPublisher{publisher: publisher, topic: topic}
}

func (p *PaymentEventPublisher) PublishPaymentEvent(ctx context.Context, event domain.PaymentEvent) error {
	v, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.publisher.Publish(ctx, p.topic, domain.Message{Key: []byte(event.OrderID), Value: v})
}
