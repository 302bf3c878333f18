package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/common/logger"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentEventProducer publishes settled payments keyed by payment id.
type PaymentEventProducer struct {
	writer messageWriter
	topic  string
}

func NewPaymentEventProducer(brokers []string, topic string) *PaymentEventProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	logger.Log.Info("kafka payment producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &PaymentEventProducer{writer: w, topic: topic}
}

func (p *PaymentEventProducer) Publish(ctx context.Context, event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(event.PaymentID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("send payment event %s: %w", event.PaymentID, err)
	}
	logger.Debug(ctx, "Sent payment event", zap.String("type", event.Type), zap.String("payment_id", event.PaymentID))
	return nil
}

func (p *PaymentEventProducer) Close() error {
	return p.writer.Close()
}
