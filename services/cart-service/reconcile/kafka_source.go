package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/common/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource feeds the reconciler from the order events topic. Offsets are
// committed only once an event was handled, so a failure is retried rather
// than skipped.
type KafkaSource struct {
	reader     messageReader
	rec        *Reconciler
	retryDelay time.Duration
}

func NewKafkaSource(brokers []string, topic, groupID string, rec *Reconciler) *KafkaSource {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3, // 1KB
		MaxBytes: 1e6, // 1MB
	})
	logger.Log.Info("cart reconciler consuming", zap.String("topic", topic), zap.String("group", groupID))
	return &KafkaSource{reader: r, rec: rec, retryDelay: time.Second}
}

// Run consumes until ctx is cancelled or the reader fails.
func (s *KafkaSource) Run(ctx context.Context) error {
	defer s.reader.Close()
	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if stopped(ctx, err) {
				return nil
			}
			return err
		}
		if !s.handle(ctx, m) {
			// cancelled mid-retry; the uncommitted message is redelivered
			return nil
		}
		if err := s.reader.CommitMessages(ctx, m); err != nil {
			if stopped(ctx, err) {
				return nil
			}
			return err
		}
	}
}

// handle retries m until it succeeds and reports false if ctx ended first.
// Later messages of the partition wait behind it.
func (s *KafkaSource) handle(ctx context.Context, m kafka.Message) bool {
	delay := s.retryDelay
	for {
		err := s.rec.HandleEvent(ctx, m.Value)
		if err == nil {
			return true
		}
		logger.Log.Warn("reconcile failed", zap.Error(err), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

func stopped(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || ctx.Err() != nil
}
