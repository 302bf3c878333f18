package controllers

import (
	"net/http"
	"strings"

	apperrors "github.com/Williethedeveloper/e-commerce-microservices/services/common/errors"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/models"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/services"
	"github.com/gin-gonic/gin"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
)

// PaymentController serves the payment endpoints.
type PaymentController struct {
	service  services.PaymentService
	webhooks WebhookParser
}

// NewPaymentController wires the controller. webhooks is nil when no
// provider sends callbacks.
func NewPaymentController(service services.PaymentService, webhooks WebhookParser) *PaymentController {
	return &PaymentController{service: service, webhooks: webhooks}
}

// CreatePayment handles POST /payments.
func (pc *PaymentController) CreatePayment(c *gin.Context) {
	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, apperrors.Validation("Invalid request body"))
		return
	}

	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		apperrors.Abort(c, apperrors.Validation("Idempotency-Key is too long"))
		return
	}

	payment, replayed, err := pc.service.CreatePayment(c.Request.Context(), req, key)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	if replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(http.StatusOK, payment.Receipt())
}

// GetPayment handles GET /payments/:paymentId.
func (pc *PaymentController) GetPayment(c *gin.Context) {
	payment, err := pc.service.GetPayment(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}
