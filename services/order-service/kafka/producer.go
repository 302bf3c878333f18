package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/common/logger"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes order events to a single topic, keyed by user so one
// user's events stay ordered within a partition.
type Producer struct {
	writer messageWriter
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	logger.Log.Info("kafka producer initialized",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
	)
	return &Producer{writer: w, topic: topic}
}

// Publish writes one order event. The topic is fixed on the writer.
func (p *Producer) Publish(ctx context.Context, evt models.OrderEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(evt.UserID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s to %s: %w", evt.Type, p.topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	logger.Log.Info("closing kafka producer", zap.String("topic", p.topic))
	return p.writer.Close()
}
