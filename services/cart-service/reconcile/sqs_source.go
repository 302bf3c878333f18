package reconcile

import (
	"context"

	aws_pkg "github.com/Williethedeveloper/e-commerce-microservices/pkg/aws"
)

type poller interface {
	StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error
}

// SQSSource feeds the reconciler from a queue subscribed to the order events
// SNS topic. A message is deleted only after it was handled.
type SQSSource struct {
	consumer poller
	rec      *Reconciler
}

func NewSQSSource(consumer *aws_pkg.SQSConsumer, rec *Reconciler) *SQSSource {
	return &SQSSource{consumer: consumer, rec: rec}
}

func (s *SQSSource) Run(ctx context.Context) error {
	return s.consumer.StartPolling(ctx, s.handle)
}

func (s *SQSSource) handle(ctx context.Context, body string) error {
	return s.rec.HandleEvent(ctx, []byte(aws_pkg.UnwrapSNS(body)))
}
