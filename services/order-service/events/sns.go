package events

import (
	"context"
	"encoding/json"

	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/models"
)

// typedPublisher is satisfied by *aws.SNSClient.
type typedPublisher interface {
	PublishWithType(ctx context.Context, topicArn, eventType string, message []byte) error
}

// SNSPublisher fans order events out through an SNS topic. The event type is
// set as a message attribute so subscribers can filter.
type SNSPublisher struct {
	client   typedPublisher
	topicArn string
}

func NewSNSPublisher(client typedPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, evt models.OrderEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.client.PublishWithType(ctx, p.topicArn, evt.Type, data)
}

// Nop drops every event. It is used when no events backend is configured.
type Nop struct{}

func (Nop) Publish(context.Context, models.OrderEvent) error { return nil }
