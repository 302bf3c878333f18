package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

// sqsAPI is the slice of the SDK client the consumer needs.
type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSConsumer long-polls one queue. A message is deleted only after its
// handler succeeds; otherwise it becomes visible again after the visibility
// timeout and is redelivered.
type SQSConsumer struct {
	client     sqsAPI
	queueURL   string
	log        *zap.Logger
	retryDelay time.Duration
}

// NewSQSConsumer creates a new SQS consumer for the given queue URL
func NewSQSConsumer(cfg sdkaws.Config, queueURL string, log *zap.Logger) *SQSConsumer {
	return &SQSConsumer{
		client:     sqs.NewFromConfig(cfg),
		queueURL:   queueURL,
		log:        log,
		retryDelay: 5 * time.Second,
	}
}

// MessageHandler processes one message body. A nil return deletes the message.
type MessageHandler func(ctx context.Context, body string) error

// StartPolling receives and handles messages until ctx is cancelled.
func (c *SQSConsumer) StartPolling(ctx context.Context, handler MessageHandler) error {
	c.log.Info("sqs polling started", zap.String("queue", c.queueURL))
	for {
		if ctx.Err() != nil {
			c.log.Info("sqs polling stopped", zap.String("queue", c.queueURL))
			return nil
		}
		if _, err := c.pollOnce(ctx, handler); err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.log.Warn("sqs receive failed", zap.String("queue", c.queueURL), zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
		}
	}
}

// pollOnce runs one receive and reports how many messages were deleted.
func (c *SQSConsumer) pollOnce(ctx context.Context, handler MessageHandler) (int, error) {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20, // long polling
		VisibilityTimeout:   30,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to receive messages: %w", err)
	}

	deleted := 0
	for _, msg := range result.Messages {
		if msg.Body == nil {
			continue
		}
		if err := handler(ctx, *msg.Body); err != nil {
			c.log.Warn("sqs message not handled",
				zap.String("message_id", sdkaws.ToString(msg.MessageId)),
				zap.Error(err),
			)
			continue
		}
		if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &c.queueURL,
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			c.log.Warn("sqs delete failed", zap.String("message_id", sdkaws.ToString(msg.MessageId)), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}

// UnwrapSNS returns the inner message when body is an SNS notification
// delivered to SQS without raw message delivery, and body otherwise.
func UnwrapSNS(body string) string {
	var envelope struct {
		Type    string `json:"Type"`
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Type == "Notification" && envelope.Message != "" {
		return envelope.Message
	}
	return body
}
