package integration

import (
	"context"
	"os"
	"testing"
	"time"

	aws_pkg "github.com/Williethedeveloper/e-commerce-microservices/pkg/aws"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/events"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/models"
	"github.com/shopspring/decimal"
)

// This test runs only when RUN_LOCALSTACK_INTEGRATION=true and an endpoint is available at AWS_ENDPOINT or default localhost:4566
func TestOrderEventPublish_LocalStack(t *testing.T) {
	if os.Getenv("RUN_LOCALSTACK_INTEGRATION") != "true" {
		t.Skip("skipping localstack integration test; set RUN_LOCALSTACK_INTEGRATION=true to run")
	}

	cfg, err := aws_pkg.LoadAWSConfig(context.Background())
	if err != nil {
		t.Fatalf("failed to load aws config: %v", err)
	}
	topic := os.Getenv("ORDER_EVENTS_TOPIC")
	if topic == "" {
		t.Fatalf("ORDER_EVENTS_TOPIC must be set for integration test")
	}

	pub := events.NewSNSPublisher(aws_pkg.NewSNSClient(cfg), topic)
	evt := models.OrderEvent{
		Type:      models.EventOrderConfirmed,
		OrderID:   "integration-order",
		UserID:    "integration-user",
		PaymentID: "PAY_integration",
		Total:     decimal.RequireFromString("1.00"),
		Timestamp: time.Now().UTC(),
	}
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("sns publish failed: %v", err)
	}
}
