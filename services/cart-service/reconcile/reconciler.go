// Package reconcile empties carts that a completed checkout left behind. The
// order service announces those checkouts on its event stream, read here from
// Kafka or from an SQS queue subscribed to the SNS topic.
package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/models"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/logger"
	"go.uber.org/zap"
)

// EventCartClearFailed is published by the order service when an order was
// recorded but the cart could not be emptied.
const EventCartClearFailed = "order.cart_clear_failed"

type cartDeleter interface {
	DeleteIfUnchangedSince(ctx context.Context, userID string, t time.Time) (bool, error)
}

// Reconciler deletes a left-behind cart unless the user wrote to it after the
// order was recorded.
type Reconciler struct {
	carts cartDeleter
}

func NewReconciler(carts cartDeleter) *Reconciler {
	return &Reconciler{carts: carts}
}

// HandleEvent processes one encoded order event. Malformed events and other
// types are dropped; an error means the event should be delivered again.
func (r *Reconciler) HandleEvent(ctx context.Context, body []byte) error {
	var evt models.OrderEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		logger.Log.Warn("invalid order event", zap.Error(err))
		return nil
	}
	if evt.Type != EventCartClearFailed || evt.UserID == "" {
		return nil
	}

	deleted, err := r.carts.DeleteIfUnchangedSince(ctx, evt.UserID, evt.Cutoff())
	if err != nil {
		return err
	}
	logger.Log.Info("cart reconciled",
		zap.String("user_id", evt.UserID),
		zap.String("order_id", evt.OrderID),
		zap.Bool("cleared", deleted),
	)
	return nil
}
