package controllers

import (
	"errors"
	"net/http"

	apperrors "github.com/Williethedeveloper/e-commerce-microservices/services/common/errors"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/logger"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookParser verifies a provider callback and reduces it to a status change.
type WebhookParser interface {
	ParseWebhook(r *http.Request) (services.IntentUpdate, error)
}

// StripeWebhook receives PaymentIntent events and settles the matching payment.
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	if pc.webhooks == nil {
		apperrors.Abort(c, apperrors.NotFound("Webhooks are not enabled", nil))
		return
	}

	update, err := pc.webhooks.ParseWebhook(c.Request)
	if errors.Is(err, services.ErrIgnoredEvent) {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		logger.Warn(ctx, "Stripe webhook verification failed", zap.Error(err))
		apperrors.Abort(c, apperrors.Validation("invalid webhook"))
		return
	}

	if err := pc.service.ApplyProviderUpdate(ctx, update); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Not ours, or created outside this service. Stripe must not retry.
			logger.Info(ctx, "Webhook for unknown payment intent", zap.String("intent_id", update.IntentID))
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		logger.Error(ctx, "Failed to apply webhook", err, zap.String("intent_id", update.IntentID))
		apperrors.Abort(c, err)
		return
	}

	logger.Info(ctx, "Processed Stripe webhook",
		zap.String("intent_id", update.IntentID),
		zap.String("status", string(update.Status)),
	)
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
